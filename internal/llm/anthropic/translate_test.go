// Copyright Istio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package anthropic

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"agentgateway.dev/agentgateway/internal/llm/universal"
)

func strp(s string) *string { return &s }

func TestTranslateRequestJoinsSystemMessages(t *testing.T) {
	req := &universal.Request{
		Model: "claude-3",
		Messages: []universal.Message{
			{Role: universal.SystemRole, Content: strp("be terse")},
			{Role: universal.SystemRole, Content: strp("be correct")},
			{Role: universal.UserRole, Content: strp("hello")},
		},
	}

	out := translateRequest(req)
	if out.System != "be terse\nbe correct" {
		t.Fatalf("unexpected system: %q", out.System)
	}
	if len(out.Messages) != 1 || out.Messages[0].Role != RoleUser {
		t.Fatalf("unexpected messages: %+v", out.Messages)
	}
	if out.Messages[0].Content[0].Text != "hello" {
		t.Fatalf("unexpected content: %+v", out.Messages[0].Content)
	}
}

func TestTranslateRequestCollapsesRolesToUserAssistant(t *testing.T) {
	req := &universal.Request{
		Model: "claude-3",
		Messages: []universal.Message{
			{Role: universal.UserRole, Content: strp("hi")},
			{Role: universal.AssistantRole, Content: strp("hello")},
			{Role: universal.ToolRole, Content: strp("tool output")},
		},
	}
	out := translateRequest(req)
	if len(out.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(out.Messages), out.Messages)
	}
	if out.Messages[0].Role != RoleUser || out.Messages[1].Role != RoleAssistant {
		t.Fatalf("unexpected roles: %+v", out.Messages)
	}
	// ToolRole is neither system nor assistant, so it collapses to user.
	if out.Messages[2].Role != RoleUser {
		t.Fatalf("expected tool role to collapse to user, got %v", out.Messages[2].Role)
	}
}

func TestTranslateRequestMaxTokensDefault(t *testing.T) {
	req := &universal.Request{Model: "claude-3"}
	out := translateRequest(req)
	if out.MaxTokens != 4096 {
		t.Fatalf("expected default max tokens 4096, got %d", out.MaxTokens)
	}
}

func TestTranslateRequestToolChoice(t *testing.T) {
	cases := []struct {
		name string
		in   *universal.ToolChoiceOption
		want *ToolChoice
	}{
		{"nil", nil, nil},
		{"auto", &universal.ToolChoiceOption{Kind: universal.ToolChoiceAuto}, &ToolChoice{Type: ToolChoiceAuto}},
		{"required", &universal.ToolChoiceOption{Kind: universal.ToolChoiceRequired}, &ToolChoice{Type: ToolChoiceAny}},
		{"none", &universal.ToolChoiceOption{Kind: universal.ToolChoiceNone}, &ToolChoice{Type: ToolChoiceNone}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := &universal.Request{Model: "claude-3", ToolChoice: c.in}
			out := translateRequest(req)
			if c.want == nil {
				if out.ToolChoice != nil {
					t.Fatalf("expected nil tool choice, got %+v", out.ToolChoice)
				}
				return
			}
			if out.ToolChoice == nil || out.ToolChoice.Type != c.want.Type {
				t.Fatalf("expected %+v, got %+v", c.want, out.ToolChoice)
			}
		})
	}
}

func TestTranslateRequestToolWithNoParametersGetsEmptySchema(t *testing.T) {
	req := &universal.Request{
		Model: "claude-3",
		Tools: []universal.Tool{{Function: universal.FunctionDefinition{Name: "ping"}}},
	}
	out := translateRequest(req)
	if len(out.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out.Tools))
	}
	if string(out.Tools[0].InputSchema) != "{}" {
		t.Fatalf("expected empty-object schema, got %q", out.Tools[0].InputSchema)
	}
}

func TestTranslateResponseTextOnly(t *testing.T) {
	stop := StopEndTurn
	resp := &MessagesResponse{
		ID:    "msg_1",
		Role:  RoleAssistant,
		Model: "claude-3",
		Content: []ContentBlock{
			{Type: ContentBlockText, Text: "hi there"},
		},
		StopReason: &stop,
		Usage:      Usage{InputTokens: 10, OutputTokens: 5},
	}

	out := translateResponse(resp)
	if out.ID != "msg_1" || out.Model != "claude-3" || out.Object != "chat.completion" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(out.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(out.Choices))
	}
	choice := out.Choices[0]
	if choice.Message.Content == nil || *choice.Message.Content != "hi there" {
		t.Fatalf("unexpected content: %+v", choice.Message.Content)
	}
	if choice.FinishReason == nil || *choice.FinishReason != universal.FinishStop {
		t.Fatalf("unexpected finish reason: %+v", choice.FinishReason)
	}
	if out.Usage.PromptTokens != 10 || out.Usage.CompletionTokens != 5 || out.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage: %+v", out.Usage)
	}
}

func TestTranslateRequestStructural(t *testing.T) {
	user := "alice"
	req := &universal.Request{
		Model: "claude-3",
		User:  &user,
		Messages: []universal.Message{
			{Role: universal.UserRole, Content: strp("hi")},
		},
	}
	got := translateRequest(req)
	want := &MessagesRequest{
		Messages:      []Message{{Role: RoleUser, Content: []ContentBlock{{Type: ContentBlockText, Text: "hi"}}}},
		Model:         "claude-3",
		MaxTokens:     4096,
		Metadata:      &Metadata{Fields: map[string]string{"user_id": "alice"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("translateRequest mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateResponseNoContentIsNilNotEmptyString(t *testing.T) {
	resp := &MessagesResponse{ID: "msg_2", Model: "claude-3", Usage: Usage{}}
	out := translateResponse(resp)
	if out.Choices[0].Message.Content != nil {
		t.Fatalf("expected nil content for zero content blocks, got %v", *out.Choices[0].Message.Content)
	}
}

func TestTranslateResponseToolUse(t *testing.T) {
	resp := &MessagesResponse{
		ID:    "msg_3",
		Model: "claude-3",
		Content: []ContentBlock{
			{Type: ContentBlockToolUse, ID: "call_1", Name: "get_weather", Input: []byte(`{"city":"nyc"}`)},
		},
		Usage: Usage{InputTokens: 1, OutputTokens: 1},
	}
	out := translateResponse(resp)
	tc := out.Choices[0].Message.ToolCalls
	if len(tc) != 1 || tc[0].Function.Name != "get_weather" {
		t.Fatalf("unexpected tool calls: %+v", tc)
	}
}

func TestTranslateStopReasonTable(t *testing.T) {
	cases := map[StopReason]universal.FinishReason{
		StopEndTurn:      universal.FinishStop,
		StopMaxTokens:    universal.FinishLength,
		StopStopSequence: universal.FinishStop,
		StopToolUse:      universal.FinishToolCalls,
		StopRefusal:      universal.FinishContentFilter,
	}
	for in, want := range cases {
		if got := translateStopReason(in); got != want {
			t.Fatalf("translateStopReason(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestTranslateResponseSynthesizesIDWhenMissing(t *testing.T) {
	resp := &MessagesResponse{Model: "claude-3", Usage: Usage{}}
	out := translateResponse(resp)
	if out.ID == "" {
		t.Fatal("expected a synthesized id when the upstream response omits one")
	}
}

func TestTranslateErrorResponse(t *testing.T) {
	resp := &MessagesErrorResponse{
		Type:  "error",
		Error: MessagesError{Type: "overloaded_error", Message: "overloaded"},
	}
	out := translateError(resp)
	if out.Error.Message != "overloaded" || out.Error.Type != "invalid_request_error" {
		t.Fatalf("unexpected error: %+v", out.Error)
	}
}
