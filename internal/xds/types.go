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

// Package xds implements a generic delta (incremental) Aggregated
// Discovery Service client. Callers register typed Handlers for the
// resource type URLs they care about; the client takes care of the
// connection lifecycle, ACK/NACK bookkeeping, reconnect backoff, and
// on-demand resource fetch.
package xds

import (
	"errors"
	"fmt"

	discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"google.golang.org/protobuf/proto"

	"agentgateway.dev/agentgateway/internal/strng"
)

// ResourceKey identifies a single resource within a type namespace.
type ResourceKey struct {
	Name    strng.Str
	TypeURL strng.Str
}

func (k ResourceKey) String() string {
	return k.TypeURL.String() + "/" + k.Name.String()
}

// RejectedConfig describes a single resource a Handler refused to apply.
// A non-empty slice of these becomes a NACK.
type RejectedConfig struct {
	Name   strng.Str
	Reason error
}

func (r RejectedConfig) Error() string {
	return r.Name.String() + ": " + r.Reason.Error()
}

// UpdateKind distinguishes an upsert from a removal in an Update.
type UpdateKind int

const (
	UpsertKind UpdateKind = iota
	RemoveKind
)

// Resource pairs a decoded proto message with the name it was received
// under.
type Resource[T proto.Message] struct {
	Name     strng.Str
	Resource T
}

// Update is a single delta entry for a resource of type T: either an
// upsert carrying the decoded resource, or a removal carrying only the
// name.
type Update[T proto.Message] struct {
	Kind    UpdateKind
	Upsert  Resource[T]
	Removed strng.Str
}

// Name returns the resource name regardless of update kind.
func (u Update[T]) Name() strng.Str {
	if u.Kind == RemoveKind {
		return u.Removed
	}
	return u.Upsert.Name
}

// HandleSingleResource is a helper for handlers that want to process
// updates one at a time and aggregate any errors into NACKs.
func HandleSingleResource[T proto.Message](updates []Update[T], handleOne func(Update[T]) error) []RejectedConfig {
	var rejects []RejectedConfig
	for _, u := range updates {
		if err := handleOne(u); err != nil {
			rejects = append(rejects, RejectedConfig{Name: u.Name(), Reason: err})
		}
	}
	return rejects
}

// Handler processes a typed discovery response. Implementations may
// mutate their own state and report per-resource rejections.
type Handler[T proto.Message] interface {
	// NoOnDemand, if true, means this type is never subscribed to on
	// demand even when the client as a whole has on-demand enabled.
	NoOnDemand() bool
	Handle(updates []Update[T]) []RejectedConfig
}

// rawHandler is the type-erased form of Handler used internally so the
// client can hold handlers for many distinct T in one map.
type rawHandler interface {
	handle(state *clientState, res *discovery.DeltaDiscoveryResponse) []RejectedConfig
}

// handlerWrapper adapts a typed Handler[T] to rawHandler. newMsg
// constructs a fresh, empty T so responses can be decoded into it; Go
// generics have no way to instantiate an arbitrary proto.Message
// without either this factory or the two-type-parameter pointer-
// constraint idiom, so the factory is the simpler of the two for a
// client with only two resource types.
type handlerWrapper[T proto.Message] struct {
	newMsg func() T
	h      Handler[T]
}

func (w *handlerWrapper[T]) handle(state *clientState, res *discovery.DeltaDiscoveryResponse) []RejectedConfig {
	typeURL := strng.New(res.GetTypeUrl())

	updates := make([]Update[T], 0, len(res.GetResources())+len(res.GetRemovedResources()))
	var decodeFailures []RejectedConfig
	for _, raw := range res.GetResources() {
		decoded, err := decodeProto(raw, w.newMsg)
		if err != nil {
			decodeFailures = append(decodeFailures, RejectedConfig{Name: strng.New(raw.GetName()), Reason: err})
			continue
		}
		updates = append(updates, Update[T]{Kind: UpsertKind, Upsert: decoded})
	}
	for _, name := range res.GetRemovedResources() {
		updates = append(updates, Update[T]{Kind: RemoveKind, Removed: strng.New(name)})
	}

	// Handlers run first so on-demand notifications (below) observe a
	// cache that already reflects this push.
	rejects := w.h.Handle(updates)

	for _, name := range res.GetRemovedResources() {
		k := ResourceKey{Name: strng.New(name), TypeURL: typeURL}
		state.removeKnown(k)
		state.notifyOnDemand(k)
	}
	for _, r := range res.GetResources() {
		k := ResourceKey{Name: strng.New(r.GetName()), TypeURL: typeURL}
		state.notifyOnDemand(k)
		state.addKnown(k)
	}

	if len(decodeFailures) == 0 {
		return rejects
	}
	return append(rejects, decodeFailures...)
}

var (
	// ErrMissingResource is returned when a discovery Resource has no payload.
	ErrMissingResource = errors.New("xds payload without resource")
)

func decodeProto[T proto.Message](res *discovery.Resource, newMsg func() T) (Resource[T], error) {
	var zero Resource[T]
	payload := res.GetResource()
	if payload == nil {
		return zero, ErrMissingResource
	}
	msg := newMsg()
	if err := payload.UnmarshalTo(msg); err != nil {
		return zero, fmt.Errorf("decode: %w", err)
	}
	return Resource[T]{Name: strng.New(res.GetName()), Resource: msg}, nil
}
