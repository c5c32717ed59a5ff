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

// Package sse adapts a byte stream framed as Server-Sent-Events into a
// byte stream of translated JSON chunks, also framed as SSE.
package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const maxFrameSize = 1 << 20

// JSONTransform reads data: frames off in, each expected to hold a
// JSON-encoded P, and calls mapper exactly once per frame with the
// decoded value (or the decode error). Whenever mapper returns a
// non-nil *U, it is serialised as one SSE frame on the returned
// reader. mapper is a stateful closure: it is invoked serially, so it
// may close over and mutate per-stream state (ids, counters, flags)
// by value across calls, matching how a single goroutine drives one
// stream end to end.
func JSONTransform[P any, U any](in io.Reader, mapper func(P, error) (*U, bool)) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		err := runTransform(in, pw, mapper)
		pw.CloseWithError(err)
	}()
	return pr
}

func runTransform[P any, U any](in io.Reader, out io.Writer, mapper func(P, error) (*U, bool)) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 4096), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := cutDataPrefix(line)
		if !ok {
			continue
		}
		if data == "" {
			continue
		}

		var parsed P
		decodeErr := json.Unmarshal([]byte(data), &parsed)

		result, emit := mapper(parsed, decodeErr)
		if !emit || result == nil {
			continue
		}

		b, err := json.Marshal(result)
		if err != nil {
			// Dropping an encode failure mirrors the contract's
			// "silently drop decode errors": there is nothing useful to
			// do with a chunk that cannot itself be serialised.
			continue
		}
		if _, err := io.WriteString(out, "data: "); err != nil {
			return err
		}
		if _, err := out.Write(b); err != nil {
			return err
		}
		if _, err := io.WriteString(out, "\n\n"); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func cutDataPrefix(line string) (string, bool) {
	const prefix = "data:"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}
