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

import (
	"errors"
	"testing"

	discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	"agentgateway.dev/agentgateway/internal/strng"
)

type recordingHandler struct {
	upserts []string
	removes []string
}

func (r *recordingHandler) NoOnDemand() bool { return false }

func (r *recordingHandler) Handle(updates []Update[*structpb.Struct]) []RejectedConfig {
	var rejects []RejectedConfig
	for _, u := range updates {
		switch u.Kind {
		case UpsertKind:
			if u.Upsert.Name == "bad" {
				rejects = append(rejects, RejectedConfig{Name: u.Upsert.Name, Reason: errors.New("rejected")})
				continue
			}
			r.upserts = append(r.upserts, u.Upsert.Name.String())
		case RemoveKind:
			r.removes = append(r.removes, u.Removed.String())
		}
	}
	return rejects
}

func mustAny(t *testing.T, s *structpb.Struct) *anypb.Any {
	t.Helper()
	a, err := anypb.New(s)
	if err != nil {
		t.Fatalf("anypb.New: %v", err)
	}
	return a
}

func TestHandlerWrapperHandle(t *testing.T) {
	h := &recordingHandler{}
	w := &handlerWrapper[*structpb.Struct]{newMsg: newStruct, h: h}
	state := newClientState()

	res := &discovery.DeltaDiscoveryResponse{
		TypeUrl: "type.a",
		Resources: []*discovery.Resource{
			{Name: "good-1", Resource: mustAny(t, &structpb.Struct{})},
			{Name: "bad", Resource: mustAny(t, &structpb.Struct{})},
		},
		RemovedResources: []string{"gone-1"},
	}

	rejects := w.handle(state, res)
	if len(rejects) != 1 || rejects[0].Name.String() != "bad" {
		t.Fatalf("expected 1 reject for bad, got %+v", rejects)
	}
	if len(h.upserts) != 1 || h.upserts[0] != "good-1" {
		t.Fatalf("expected upsert good-1, got %v", h.upserts)
	}
	if len(h.removes) != 1 || h.removes[0] != "gone-1" {
		t.Fatalf("expected remove gone-1, got %v", h.removes)
	}

	known := state.knownResources[strng.New("type.a")]
	if _, ok := known["good-1"]; !ok {
		t.Fatalf("expected good-1 tracked as known, got %v", known)
	}
	if _, ok := known["bad"]; !ok {
		t.Fatalf("rejected resources are still tracked as known (NACK is advisory), got %v", known)
	}
}

func TestHandlerWrapperMissingResource(t *testing.T) {
	h := &recordingHandler{}
	w := &handlerWrapper[*structpb.Struct]{newMsg: newStruct, h: h}
	state := newClientState()

	res := &discovery.DeltaDiscoveryResponse{
		TypeUrl:   "type.a",
		Resources: []*discovery.Resource{{Name: "missing"}},
	}
	rejects := w.handle(state, res)
	if len(rejects) != 1 {
		t.Fatalf("expected 1 decode-failure reject, got %+v", rejects)
	}
	if !errors.Is(rejects[0].Reason, ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource, got %v", rejects[0].Reason)
	}
}

func TestHandleSingleResource(t *testing.T) {
	updates := []Update[*structpb.Struct]{
		{Kind: UpsertKind, Upsert: Resource[*structpb.Struct]{Name: strng.New("a")}},
		{Kind: UpsertKind, Upsert: Resource[*structpb.Struct]{Name: strng.New("b")}},
	}
	rejects := HandleSingleResource(updates, func(u Update[*structpb.Struct]) error {
		if u.Name().String() == "b" {
			return errors.New("boom")
		}
		return nil
	})
	if len(rejects) != 1 || rejects[0].Name.String() != "b" {
		t.Fatalf("expected reject for b, got %+v", rejects)
	}
}

func TestNotifyOnDemand(t *testing.T) {
	state := newClientState()
	key := ResourceKey{TypeURL: strng.New("type.a"), Name: strng.New("res-1")}
	done := make(chan struct{})
	state.pending[key] = done

	state.notifyOnDemand(key)

	select {
	case <-done:
	default:
		t.Fatal("expected pending channel to be closed")
	}
	if _, ok := state.pending[key]; ok {
		t.Fatal("expected pending entry to be removed after notify")
	}
}
