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
	"sync/atomic"

	"agentgateway.dev/agentgateway/internal/state/config"
)

// Bind, Policy, Backend, Service, and Workload are aliases onto the
// leaf config package so existing call sites in this package keep
// their unqualified names; config.go is where the types actually live
// so that internal/state/localconfig can depend on them too without a
// state -> localconfig -> state import cycle.
type (
	Bind     = config.Bind
	Policy   = config.Policy
	Backend  = config.Backend
	Service  = config.Service
	Workload = config.Workload
)

// bindsSnapshot is an immutable point-in-time view of the binds store.
type bindsSnapshot struct {
	binds    map[string]Bind
	policies map[string]Policy
	backends map[string]Backend
}

// discoverySnapshot is an immutable point-in-time view of the
// discovery (service/workload) store.
type discoverySnapshot struct {
	services  map[string]Service
	workloads map[string]Workload
}

// BindsStore holds the current binds/policies/backends state behind an
// atomic snapshot pointer: readers never block, and a sync always
// replaces the whole snapshot rather than mutating in place.
type BindsStore struct {
	snap atomic.Value
}

// DiscoveryStore holds the current services/workloads state behind an
// atomic snapshot pointer, with the same swap-not-mutate semantics as
// BindsStore.
type DiscoveryStore struct {
	snap atomic.Value
}

// BindPreviousState tracks which bind/policy/backend names were present
// in the last sync, so the next sync can compute what to delete.
type BindPreviousState struct {
	Binds    map[string]struct{}
	Policies map[string]struct{}
	Backends map[string]struct{}
}

// DiscoveryPreviousState tracks which service/workload names were
// present in the last sync.
type DiscoveryPreviousState struct {
	Services  map[string]struct{}
	Workloads map[string]struct{}
}

// Stores is the full set of domain state synchronized from either xDS
// or a local config file.
type Stores struct {
	Binds     *BindsStore
	Discovery *DiscoveryStore
}

// NewStores constructs an empty Stores.
func NewStores() Stores {
	return Stores{Binds: &BindsStore{}, Discovery: &DiscoveryStore{}}
}

func namesOf[T any](m map[string]T) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// SyncLocal atomically replaces the binds/policies/backends snapshot
// and returns the new PreviousState, so the caller can feed it back
// into the next reload.
func (s *BindsStore) SyncLocal(binds []Bind, policies []Policy, backends []Backend, prev BindPreviousState) BindPreviousState {
	next := &bindsSnapshot{
		binds:    make(map[string]Bind, len(binds)),
		policies: make(map[string]Policy, len(policies)),
		backends: make(map[string]Backend, len(backends)),
	}
	for _, b := range binds {
		next.binds[b.Name] = b
	}
	for _, p := range policies {
		next.policies[p.Name] = p
	}
	for _, b := range backends {
		next.backends[b.Name] = b
	}
	s.snap.Store(next)
	return BindPreviousState{
		Binds:    namesOf(next.binds),
		Policies: namesOf(next.policies),
		Backends: namesOf(next.backends),
	}
}

// SyncXDS applies an xDS delta for binds-side resources: upserts
// replace the existing entry, removals delete by name. Unlike
// SyncLocal this is an incremental merge, since xDS deltas only carry
// what changed.
func (s *BindsStore) SyncXDS(upsert map[string]Bind, remove []string) {
	cur := s.current()
	next := &bindsSnapshot{
		binds:    cloneMap(cur.binds),
		policies: cloneMap(cur.policies),
		backends: cloneMap(cur.backends),
	}
	for name, b := range upsert {
		next.binds[name] = b
	}
	for _, name := range remove {
		delete(next.binds, name)
	}
	s.snap.Store(next)
}

func (s *BindsStore) current() *bindsSnapshot {
	v := s.snap.Load()
	if v == nil {
		return &bindsSnapshot{binds: map[string]Bind{}, policies: map[string]Policy{}, backends: map[string]Backend{}}
	}
	return v.(*bindsSnapshot)
}

// Bind looks up a bind by name in the current snapshot.
func (s *BindsStore) Bind(name string) (Bind, bool) {
	b, ok := s.current().binds[name]
	return b, ok
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SyncLocal atomically replaces the services/workloads snapshot and
// returns the new PreviousState.
func (s *DiscoveryStore) SyncLocal(services []Service, workloads []Workload, prev DiscoveryPreviousState) (DiscoveryPreviousState, error) {
	next := &discoverySnapshot{
		services:  make(map[string]Service, len(services)),
		workloads: make(map[string]Workload, len(workloads)),
	}
	for _, svc := range services {
		next.services[svc.Name] = svc
	}
	for _, w := range workloads {
		next.workloads[w.Name] = w
	}
	s.snap.Store(next)
	return DiscoveryPreviousState{
		Services:  namesOf(next.services),
		Workloads: namesOf(next.workloads),
	}, nil
}

// SyncXDS applies an incremental xDS update to workloads (pushed as the
// Address type, see workloadHandler in handlers.go).
func (s *DiscoveryStore) SyncXDS(upsert map[string]Workload, remove []string) {
	cur := s.currentDiscovery()
	next := &discoverySnapshot{
		services:  cloneMap(cur.services),
		workloads: cloneMap(cur.workloads),
	}
	for name, w := range upsert {
		next.workloads[name] = w
	}
	for _, name := range remove {
		delete(next.workloads, name)
	}
	s.snap.Store(next)
}

func (s *DiscoveryStore) currentDiscovery() *discoverySnapshot {
	v := s.snap.Load()
	if v == nil {
		return &discoverySnapshot{services: map[string]Service{}, workloads: map[string]Workload{}}
	}
	return v.(*discoverySnapshot)
}

// Workload looks up a workload by name in the current snapshot.
func (s *DiscoveryStore) Workload(name string) (Workload, bool) {
	w, ok := s.currentDiscovery().workloads[name]
	return w, ok
}
