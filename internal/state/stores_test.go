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

import "testing"

func TestBindsStoreSyncLocalReplacesSnapshot(t *testing.T) {
	s := &BindsStore{}
	prev := s.SyncLocal(
		[]Bind{{Name: "a", Address: "1.1.1.1:80"}},
		nil, nil, BindPreviousState{},
	)
	if _, ok := prev.Binds["a"]; !ok {
		t.Fatalf("expected bind a in previous-state names, got %v", prev.Binds)
	}
	if b, ok := s.Bind("a"); !ok || b.Address != "1.1.1.1:80" {
		t.Fatalf("expected bind a to be retrievable, got %v ok=%v", b, ok)
	}

	next := s.SyncLocal([]Bind{{Name: "b", Address: "2.2.2.2:80"}}, nil, nil, prev)
	if _, ok := s.Bind("a"); ok {
		t.Fatalf("expected bind a removed after full resync, found it")
	}
	if _, ok := next.Binds["b"]; !ok {
		t.Fatalf("expected bind b present after resync, got %v", next.Binds)
	}
}

func TestBindsStoreSyncXDSIsIncremental(t *testing.T) {
	s := &BindsStore{}
	s.SyncLocal([]Bind{{Name: "a", Address: "1.1.1.1:80"}}, nil, nil, BindPreviousState{})

	s.SyncXDS(map[string]Bind{"b": {Name: "b", Address: "2.2.2.2:80"}}, nil)
	if _, ok := s.Bind("a"); !ok {
		t.Fatal("expected bind a to survive an incremental xDS sync")
	}
	if _, ok := s.Bind("b"); !ok {
		t.Fatal("expected bind b added by incremental xDS sync")
	}

	s.SyncXDS(nil, []string{"a"})
	if _, ok := s.Bind("a"); ok {
		t.Fatal("expected bind a removed by incremental xDS removal")
	}
}

func TestDiscoveryStoreSyncLocal(t *testing.T) {
	s := &DiscoveryStore{}
	prev, err := s.SyncLocal(nil, []Workload{{Name: "w1", Address: "10.0.0.1"}}, DiscoveryPreviousState{})
	if err != nil {
		t.Fatalf("SyncLocal: %v", err)
	}
	if _, ok := prev.Workloads["w1"]; !ok {
		t.Fatalf("expected w1 in previous-state, got %v", prev.Workloads)
	}
	if w, ok := s.Workload("w1"); !ok || w.Address != "10.0.0.1" {
		t.Fatalf("expected workload w1 retrievable, got %v ok=%v", w, ok)
	}
}
