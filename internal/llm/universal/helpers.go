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

package universal

// defaultMaxTokens is used when a request doesn't specify one. Most
// providers reject a missing max_tokens outright.
const defaultMaxTokens = 4096

// MaxTokens normalizes Request.MaxTokens to a concrete value for
// providers (like Anthropic) that require one on every request.
func MaxTokens(r *Request) int {
	if r.MaxTokens != nil {
		return *r.MaxTokens
	}
	return defaultMaxTokens
}

// StopSequence flattens Request.Stop to a slice, regardless of which
// wire shape (single string or list) the caller sent.
func StopSequence(r *Request) []string {
	if r.Stop == nil {
		return nil
	}
	if r.Stop.Single != nil {
		return []string{*r.Stop.Single}
	}
	return r.Stop.Multi
}

// MessageRole returns the role of a message.
func MessageRole(m *Message) Role {
	return m.Role
}

// MessageText returns a message's textual content, if any.
func MessageText(m *Message) *string {
	return m.Content
}
