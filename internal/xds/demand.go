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

package xds

import "agentgateway.dev/agentgateway/internal/strng"

// demandRequest carries a single on-demand fetch request from a
// Demander into the client's run loop.
type demandRequest struct {
	key  ResourceKey
	done chan struct{}
}

// Demanded lets a caller await a single on-demand xDS fetch. Recv does
// not return the resource itself; it unblocks once the configured
// Handler for the resource's type has processed the corresponding push.
type Demanded struct {
	done chan struct{}
}

// Recv blocks until the demanded resource has been handled.
func (d Demanded) Recv() {
	<-d.done
}

// Demander requests xDS resources on demand. Obtain one via
// Client.Demander; it is the zero Demander if the client was not
// configured with WithOnDemand(true).
type Demander struct {
	demand chan demandRequest
}

// Demand requests the named resource of typeURL and returns a Demanded
// that resolves once the resource has been pushed and handled.
func (d Demander) Demand(typeURL, name strng.Str) Demanded {
	done := make(chan struct{})
	d.demand <- demandRequest{key: ResourceKey{TypeURL: typeURL, Name: name}, done: done}
	return Demanded{done: done}
}

// clientState holds the mutable bookkeeping a Client's run loop owns:
// which resources are known per type, and which on-demand fetches are
// still pending. It is only ever touched from the single goroutine
// running Client.Run, so it needs no locking.
type clientState struct {
	knownResources map[strng.Str]map[strng.Str]struct{}
	pending        map[ResourceKey]chan struct{}

	demand     chan demandRequest
	demandDone chan struct{}
}

func newClientState() *clientState {
	return &clientState{
		knownResources: map[strng.Str]map[strng.Str]struct{}{},
		pending:        map[ResourceKey]chan struct{}{},
		demand:         make(chan demandRequest, 100),
	}
}

func (s *clientState) notifyOnDemand(key ResourceKey) {
	if done, ok := s.pending[key]; ok {
		close(done)
		delete(s.pending, key)
	}
}

func (s *clientState) addKnown(key ResourceKey) {
	set, ok := s.knownResources[key.TypeURL]
	if !ok {
		set = map[strng.Str]struct{}{}
		s.knownResources[key.TypeURL] = set
	}
	set[key.Name] = struct{}{}
}

func (s *clientState) removeKnown(key ResourceKey) {
	if set, ok := s.knownResources[key.TypeURL]; ok {
		delete(set, key.Name)
	}
}
