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
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentgateway.dev/agentgateway/internal/llm"
	"agentgateway.dev/agentgateway/internal/llm/universal"
)

// Provider implements llm.Provider against the Anthropic Messages API.
type Provider struct {
	// Model, if set, overrides whatever model the universal request asked for.
	Model string
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) ProcessRequest(req *universal.Request) ([]byte, error) {
	r := *req
	if p.Model != "" {
		r.Model = p.Model
	}
	out := translateRequest(&r)
	b, err := json.Marshal(out)
	if err != nil {
		return nil, llm.NewError("request", err)
	}
	return b, nil
}

func (p *Provider) ProcessResponse(body []byte) (*universal.Response, error) {
	var resp MessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewError("response", err)
	}
	out := translateResponse(&resp)
	return out, nil
}

func (p *Provider) ProcessError(body []byte) (*universal.ChatCompletionErrorResponse, error) {
	var resp MessagesErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewError("error_response", err)
	}
	return translateError(&resp), nil
}

func translateError(resp *MessagesErrorResponse) *universal.ChatCompletionErrorResponse {
	return &universal.ChatCompletionErrorResponse{
		Error: universal.ChatCompletionError{
			Type:    "invalid_request_error",
			Message: resp.Error.Message,
		},
	}
}

func translateResponse(resp *MessagesResponse) *universal.Response {
	var content *string
	var toolCalls []universal.MessageToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case ContentBlockText:
			text := block.Text
			content = &text
		case ContentBlockImage:
			continue // skip images in response for now
		case ContentBlockToolUse:
			toolCalls = append(toolCalls, universal.MessageToolCall{
				ID:   block.ID,
				Type: universal.ToolTypeFunction,
				Function: universal.FunctionCall{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		case ContentBlockToolResult:
			continue // belongs on the request path, not the response path
		}
	}

	message := universal.ResponseMessage{
		Role:      universal.AssistantRole,
		Content:   content,
		ToolCalls: toolCalls,
	}

	var finishReason *universal.FinishReason
	if resp.StopReason != nil {
		fr := translateStopReason(*resp.StopReason)
		finishReason = &fr
	}

	choice := universal.ChatChoice{
		Index:        0,
		Message:      message,
		FinishReason: finishReason,
	}

	usage := universal.Usage{
		PromptTokens:     uint32(resp.Usage.InputTokens),
		CompletionTokens: uint32(resp.Usage.OutputTokens),
		TotalTokens:      uint32(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	id := resp.ID
	if id == "" {
		// Anthropic always sets an id; this only fires against a
		// malformed or hand-built response in tests.
		id = uuid.NewString()
	}

	return &universal.Response{
		ID:      id,
		Object:  "chat.completion",
		Created: uint32(time.Now().Unix()), // Anthropic responses carry no timestamp
		Model:   resp.Model,
		Choices: []universal.ChatChoice{choice},
		Usage:   &usage,
	}
}

func translateRequest(req *universal.Request) *MessagesRequest {
	maxTokens := universal.MaxTokens(req)
	stopSequences := universal.StopSequence(req)

	var systemParts []string
	var messages []Message
	for _, msg := range req.Messages {
		if universal.MessageRole(&msg) == universal.SystemRole {
			if text := universal.MessageText(&msg); text != nil {
				systemParts = append(systemParts, *text)
			}
			continue
		}
		role := RoleUser
		if universal.MessageRole(&msg) == universal.AssistantRole {
			role = RoleAssistant
		}
		text := universal.MessageText(&msg)
		if text == nil {
			continue
		}
		messages = append(messages, Message{
			Role:    role,
			Content: []ContentBlock{{Type: ContentBlockText, Text: *text}},
		})
	}
	system := strings.Join(systemParts, "\n")

	var tools []Tool
	for _, t := range req.Tools {
		schema := t.Function.Parameters
		if schema == nil {
			schema = json.RawMessage(`{}`)
		}
		tools = append(tools, Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: schema,
		})
	}

	var metadata *Metadata
	if req.User != nil {
		metadata = &Metadata{Fields: map[string]string{"user_id": *req.User}}
	}

	var toolChoice *ToolChoice
	if req.ToolChoice != nil {
		switch req.ToolChoice.Kind {
		case universal.ToolChoiceNamed:
			toolChoice = &ToolChoice{Type: ToolChoiceTool, Name: req.ToolChoice.Named.Function.Name}
		case universal.ToolChoiceAuto:
			toolChoice = &ToolChoice{Type: ToolChoiceAuto}
		case universal.ToolChoiceRequired:
			toolChoice = &ToolChoice{Type: ToolChoiceAny}
		case universal.ToolChoiceNone:
			toolChoice = &ToolChoice{Type: ToolChoiceNone}
		}
	}

	stream := false
	if req.Stream != nil {
		stream = *req.Stream
	}

	return &MessagesRequest{
		Messages:      messages,
		System:        system,
		Model:         req.Model,
		MaxTokens:     maxTokens,
		StopSequences: stopSequences,
		Stream:        stream,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		// TopK is left unset: the universal schema has no equivalent.
		Tools:      tools,
		ToolChoice: toolChoice,
		Metadata:   metadata,
	}
}

func translateStopReason(r StopReason) universal.FinishReason {
	switch r {
	case StopEndTurn:
		return universal.FinishStop
	case StopMaxTokens:
		return universal.FinishLength
	case StopStopSequence:
		return universal.FinishStop
	case StopToolUse:
		return universal.FinishToolCalls
	case StopRefusal:
		return universal.FinishContentFilter
	default:
		return universal.FinishStop
	}
}
