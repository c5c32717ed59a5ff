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
	"io"
	"time"

	"agentgateway.dev/agentgateway/internal/llm"
	"agentgateway.dev/agentgateway/internal/llm/sse"
	"agentgateway.dev/agentgateway/internal/llm/universal"
)

// ProcessStreaming wraps an upstream Messages API SSE body, translating
// each MessagesStreamEvent into zero or one universal StreamResponse
// chunks and recording accounting into log as events arrive.
func (p *Provider) ProcessStreaming(log *llm.ResponseLog, body io.Reader) io.Reader {
	var (
		messageID   string
		model       string
		created     = uint32(time.Now().Unix())
		inputTokens int
		sawToken    bool
	)

	mk := func(choices []universal.ChatChoiceStream, usage *universal.Usage) *universal.StreamResponse {
		id := messageID
		if id == "" {
			id = "unknown"
		}
		return &universal.StreamResponse{
			ID:      id,
			Model:   model,
			Object:  "chat.completion.chunk",
			Created: created,
			Choices: choices,
			Usage:   usage,
		}
	}

	return sse.JSONTransform[MessagesStreamEvent, universal.StreamResponse](body, func(ev MessagesStreamEvent, err error) (*universal.StreamResponse, bool) {
		// Silently drop decode errors: there is nothing useful to do
		// with a malformed upstream frame.
		if err != nil {
			return nil, false
		}

		switch ev.Type {
		case EventMessageStart:
			if ev.Message == nil {
				return nil, false
			}
			messageID = ev.Message.ID
			model = ev.Message.Model
			inputTokens = ev.Message.Usage.InputTokens
			outputTokens := uint64(ev.Message.Usage.OutputTokens)
			inputTokensFromResponse := uint64(inputTokens)
			providerModel := model
			log.NonAtomicMutate(func(r *llm.Response) {
				r.OutputTokens = &outputTokens
				r.InputTokensFromResponse = &inputTokensFromResponse
				r.ProviderModel = providerModel
			})
			return nil, false // no chunk to emit yet

		case EventContentBlockStart:
			return nil, false // no content carried here

		case EventContentBlockDelta:
			if !sawToken {
				sawToken = true
				now := time.Now()
				log.NonAtomicMutate(func(r *llm.Response) {
					r.FirstToken = &now
				})
			}
			if ev.ContentBlockDelta == nil {
				return nil, false
			}
			text := ev.ContentBlockDelta.Text
			choice := universal.ChatChoiceStream{
				Index: 0,
				Delta: universal.StreamResponseDelta{
					Content: &text,
				},
			}
			return mk([]universal.ChatChoiceStream{choice}, nil), true

		case EventMessageDelta:
			if ev.Usage == nil {
				return nil, false
			}
			outputTokens := uint64(ev.Usage.OutputTokens)
			log.NonAtomicMutate(func(r *llm.Response) {
				r.OutputTokens = &outputTokens
				if r.InputTokensFromResponse != nil {
					total := *r.InputTokensFromResponse + outputTokens
					r.TotalTokens = &total
				}
			})
			usage := universal.Usage{
				// The mathematically correct labelling: prompt_tokens is
				// the input side, completion_tokens the output side.
				PromptTokens:     uint32(inputTokens),
				CompletionTokens: uint32(ev.Usage.OutputTokens),
				TotalTokens:      uint32(inputTokens + ev.Usage.OutputTokens),
			}
			return mk([]universal.ChatChoiceStream{}, &usage), true

		case EventContentBlockStop, EventMessageStop, EventPing:
			return nil, false

		default:
			return nil, false
		}
	})
}
