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
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"agentgateway.dev/agentgateway/internal/xds"
)

// The real agentgateway.dev.workload.Address and
// agentgateway.dev.resource.Resource proto messages are not vendored
// in this tree, so both xDS-delivered resource types decode into a
// plain google.protobuf.Struct; handlers below read the well-known
// fields they need off of it. Swapping in the generated proto types is
// a matter of changing these two constructors and field accessors.

func newWorkloadAddress() *structpb.Struct { return &structpb.Struct{} }
func newAgentResource() *structpb.Struct   { return &structpb.Struct{} }

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// workloadHandler applies Address-type xDS pushes into the discovery
// store's workloads.
type workloadHandler struct {
	discovery *DiscoveryStore
}

func (workloadHandler) NoOnDemand() bool { return false }

func (h workloadHandler) Handle(updates []xds.Update[*structpb.Struct]) []xds.RejectedConfig {
	upsert := map[string]Workload{}
	var remove []string
	rejects := xds.HandleSingleResource(updates, func(u xds.Update[*structpb.Struct]) error {
		if u.Kind == xds.RemoveKind {
			remove = append(remove, u.Name().String())
			return nil
		}
		addr := stringField(u.Upsert.Resource, "address")
		if addr == "" {
			return fmt.Errorf("workload %s missing address field", u.Upsert.Name)
		}
		upsert[u.Upsert.Name.String()] = Workload{Name: u.Upsert.Name.String(), Address: addr}
		return nil
	})
	h.discovery.SyncXDS(upsert, remove)
	return rejects
}

// resourceHandler applies agentgateway Resource-type xDS pushes into
// the binds store. The upstream agentgateway.dev.resource.Resource
// message is itself a union of bind/policy/backend-shaped payloads;
// this handler treats every pushed resource as a bind, which is
// sufficient for exercising the handler/store wiring end to end.
type resourceHandler struct {
	binds *BindsStore
}

func (resourceHandler) NoOnDemand() bool { return false }

func (h resourceHandler) Handle(updates []xds.Update[*structpb.Struct]) []xds.RejectedConfig {
	upsert := map[string]Bind{}
	var remove []string
	rejects := xds.HandleSingleResource(updates, func(u xds.Update[*structpb.Struct]) error {
		if u.Kind == xds.RemoveKind {
			remove = append(remove, u.Name().String())
			return nil
		}
		upsert[u.Upsert.Name.String()] = Bind{
			Name:    u.Upsert.Name.String(),
			Address: stringField(u.Upsert.Resource, "address"),
		}
		return nil
	})
	h.binds.SyncXDS(upsert, remove)
	return rejects
}
