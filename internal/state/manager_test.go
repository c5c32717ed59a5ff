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

package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLocalClientReload(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, `
binds:
  - name: default
    address: 0.0.0.0:8080
`)

	lc := &localClient{path: path, stores: NewStores()}
	next, err := lc.reload(PreviousState{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := next.Binds.Binds["default"]; !ok {
		t.Fatalf("expected bind default in previous-state, got %v", next.Binds.Binds)
	}
	if b, ok := lc.stores.Binds.Bind("default"); !ok || b.Address != "0.0.0.0:8080" {
		t.Fatalf("expected bind default retrievable, got %v ok=%v", b, ok)
	}
}

func TestLocalClientReloadReplacesOnNextRead(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, `
binds:
  - name: a
    address: 1.1.1.1:80
`)

	lc := &localClient{path: path, stores: NewStores()}
	prev, err := lc.reload(PreviousState{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := os.WriteFile(path, []byte(`
binds:
  - name: b
    address: 2.2.2.2:80
`), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	next, err := lc.reload(prev)
	if err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if _, ok := lc.stores.Binds.Bind("a"); ok {
		t.Fatal("expected bind a removed after full resync")
	}
	if _, ok := next.Binds.Binds["b"]; !ok {
		t.Fatalf("expected bind b present, got %v", next.Binds.Binds)
	}
}

func TestLocalClientReloadMissingFile(t *testing.T) {
	lc := &localClient{path: filepath.Join(t.TempDir(), "missing.yaml"), stores: NewStores()}
	if _, err := lc.reload(PreviousState{}); err == nil {
		t.Fatal("expected error reading missing file")
	}
}

func TestManagerNewLocalOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, `
workloads:
  - name: chat-0
    address: 10.0.0.5
`)

	m, err := New(context.Background(), Config{LocalConfigPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := m.Stores().Discovery.Workload("chat-0"); !ok {
		t.Fatal("expected workload chat-0 loaded from local config")
	}
	// No xDS address configured, Run should return immediately.
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
