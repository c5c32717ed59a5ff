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

// Package anthropic translates between the universal chat-completion
// schema and the Anthropic Messages API wire format.
package anthropic

import "encoding/json"

const (
	DefaultHost = "api.anthropic.com"
	DefaultPath = "/v1/messages"
)

// Role is the Anthropic message role; unlike the universal schema,
// Anthropic has no "system" or "tool" role on a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is a tagged union over the block kinds Anthropic
// messages are built from.
type ContentBlock struct {
	Type string `json:"type"`

	// Text
	Text string `json:"text,omitempty"`

	// Image
	Source    string `json:"source,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`

	// ToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

const (
	ContentBlockText       = "text"
	ContentBlockImage      = "image"
	ContentBlockToolUse    = "tool_use"
	ContentBlockToolResult = "tool_result"
)

// Message is one turn in a MessagesRequest.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// MessagesRequest is the request body for POST /v1/messages.
type MessagesRequest struct {
	Messages      []Message    `json:"messages"`
	System        string       `json:"system,omitempty"`
	Model         string       `json:"model"`
	MaxTokens     int          `json:"max_tokens"`
	StopSequences []string     `json:"stop_sequences,omitempty"`
	Stream        bool         `json:"stream,omitempty"`
	Temperature   *float32     `json:"temperature,omitempty"`
	TopP          *float32     `json:"top_p,omitempty"`
	TopK          *int         `json:"top_k,omitempty"`
	Tools         []Tool       `json:"tools,omitempty"`
	ToolChoice    *ToolChoice  `json:"tool_choice,omitempty"`
	Metadata      *Metadata    `json:"metadata,omitempty"`
}

// MessagesResponse is the response body for POST /v1/messages.
type MessagesResponse struct {
	// Unique object identifier. The format and length of IDs may change
	// over time.
	ID string `json:"id"`
	// Object type. For Messages, this is always "message".
	Type string `json:"type"`
	// Conversational role of the generated message. Always "assistant".
	Role Role `json:"role"`
	// Content generated by the model: an array of content blocks, each
	// with a type that determines its shape. translateResponse reads
	// "text" and "tool_use" blocks and skips the others.
	//
	// If the request input messages ended with an assistant turn, the
	// response content continues directly from that last turn.
	Content []ContentBlock `json:"content"`
	// The model that handled the request.
	Model string `json:"model"`
	// The reason generation stopped:
	//  - "end_turn": the model reached a natural stopping point
	//  - "max_tokens": max_tokens or the model's maximum was exceeded
	//  - "stop_sequence": one of the custom stop_sequences was generated
	//
	// In non-streaming mode this is always non-null; in streaming mode
	// it is null on message_start and non-null otherwise.
	StopReason *StopReason `json:"stop_reason"`
	// Which custom stop sequence was generated, if any.
	StopSequence *string `json:"stop_sequence"`
	// Billing and rate-limit usage. Because requests are transformed
	// internally before reaching the model and responses go through a
	// parsing stage, usage does not map one-to-one onto the visible
	// request/response content; output_tokens is non-zero even for an
	// empty response.
	Usage Usage `json:"usage"`
}

// MessagesStreamEvent is a tagged union over the SSE event kinds the
// Messages API emits when streaming. content_block_delta and
// message_delta events both carry a top-level "delta" field but with
// different shapes, so this type implements custom JSON (un)marshaling
// rather than relying on struct tags to disambiguate them.
// https://docs.anthropic.com/en/docs/build-with-claude/streaming
type MessagesStreamEvent struct {
	Type string

	Message *MessagesResponse // message_start

	Index              int           // content_block_start, content_block_delta, content_block_stop
	ContentBlock       *ContentBlock // content_block_start
	ContentBlockDelta  *ContentBlockDelta // content_block_delta

	MessageDelta *MessageDelta      // message_delta
	Usage        *MessageDeltaUsage // message_delta
}

const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
)

func (e *MessagesStreamEvent) UnmarshalJSON(b []byte) error {
	var tagged struct {
		Type         string             `json:"type"`
		Message      *MessagesResponse  `json:"message"`
		Index        *int               `json:"index"`
		ContentBlock *ContentBlock      `json:"content_block"`
		Delta        json.RawMessage    `json:"delta"`
		Usage        *MessageDeltaUsage `json:"usage"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	e.Type = tagged.Type
	e.Message = tagged.Message
	if tagged.Index != nil {
		e.Index = *tagged.Index
	}
	e.ContentBlock = tagged.ContentBlock
	e.Usage = tagged.Usage

	if len(tagged.Delta) == 0 {
		return nil
	}
	switch tagged.Type {
	case EventMessageDelta:
		var d MessageDelta
		if err := json.Unmarshal(tagged.Delta, &d); err != nil {
			return err
		}
		e.MessageDelta = &d
	case EventContentBlockDelta:
		var d ContentBlockDelta
		if err := json.Unmarshal(tagged.Delta, &d); err != nil {
			return err
		}
		e.ContentBlockDelta = &d
	}
	return nil
}

func (e MessagesStreamEvent) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": e.Type}
	switch e.Type {
	case EventMessageStart:
		out["message"] = e.Message
	case EventContentBlockStart:
		out["index"] = e.Index
		out["content_block"] = e.ContentBlock
	case EventContentBlockDelta:
		out["index"] = e.Index
		out["delta"] = e.ContentBlockDelta
	case EventContentBlockStop:
		out["index"] = e.Index
	case EventMessageDelta:
		out["delta"] = e.MessageDelta
		out["usage"] = e.Usage
	}
	return json.Marshal(out)
}

// ContentBlockDelta is the incremental payload of a content_block_delta
// event. TextDelta is the only delta kind Anthropic currently sends.
type ContentBlockDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageDeltaUsage carries the output token count as of a
// message_delta event; input tokens were already reported at
// message_start and are not repeated here.
type MessageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// MessageDelta is the top-level payload of a message_delta event.
type MessageDelta struct {
	// See MessagesResponse.StopReason for the meaning of each value.
	StopReason   *StopReason `json:"stop_reason"`
	StopSequence *string     `json:"stop_sequence"`
}

// MessagesErrorResponse is the body Anthropic returns on a non-2xx.
type MessagesErrorResponse struct {
	Type  string        `json:"type"`
	Error MessagesError `json:"error"`
}

type MessagesError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StopReason is why generation stopped.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
	StopRefusal      StopReason = "refusal"
)

// Usage is billing/rate-limit token accounting for one request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Tool is a single callable tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoice controls whether/which tool the model must use.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
	ToolChoiceNone = "none"
)

// Metadata holds opaque per-request fields, typically just user_id.
type Metadata struct {
	Fields map[string]string
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Fields)
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &m.Fields)
}
