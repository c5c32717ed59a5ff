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

// Package strng provides a string type tuned for our use case: cheap to
// copy (a Go string header is already just pointer+len), immutable, and
// de-duplicated in memory for values that recur often, such as resource
// type URLs and provider names.
package strng

import "sync"

// Str is an interned, immutable string. The zero value is the empty string.
type Str string

// Empty is the canonical empty Str.
const Empty Str = ""

var pool sync.Map // string -> Str

// New interns s and returns the canonical Str for its contents. Two calls
// with equal contents return values that compare equal; the underlying
// backing array is shared where the runtime has already seen the value.
func New[A ~string](s A) Str {
	k := string(s)
	if v, ok := pool.Load(k); ok {
		return v.(Str)
	}
	v, _ := pool.LoadOrStore(k, Str(k))
	return v.(Str)
}

func (s Str) String() string {
	return string(s)
}

// IsEmpty reports whether s has no contents.
func (s Str) IsEmpty() bool {
	return s == Empty
}
