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

package llm

import (
	"fmt"
	"io"

	"agentgateway.dev/agentgateway/internal/llm/universal"
)

// Error wraps the distinct failure modes a Provider can hit, preserving
// which stage (request build, response parse, upstream error body
// parse) produced it.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("llm: %s: %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with the pipeline stage that produced it, for use
// by Provider implementations building ProcessResponse/ProcessError
// failures.
func NewError(stage string, err error) error { return &Error{Stage: stage, Err: err} }

// Provider is implemented by each concrete LLM backend (Anthropic,
// and future providers) to translate between the universal schema and
// that provider's wire format.
type Provider interface {
	// Name identifies the provider, e.g. for routing and metrics.
	Name() string

	// ProcessRequest turns a universal request into the bytes to send
	// upstream.
	ProcessRequest(req *universal.Request) ([]byte, error)

	// ProcessResponse decodes a non-streaming upstream response body
	// into the universal schema.
	ProcessResponse(body []byte) (*universal.Response, error)

	// ProcessStreaming wraps an upstream SSE body reader, translating
	// provider stream events into universal StreamResponse chunks
	// framed as SSE, and records accounting into log as it goes.
	ProcessStreaming(log *ResponseLog, body io.Reader) io.Reader

	// ProcessError decodes a non-2xx upstream response body into the
	// universal error schema.
	ProcessError(body []byte) (*universal.ChatCompletionErrorResponse, error)
}
