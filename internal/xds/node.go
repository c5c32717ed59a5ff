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
	"fmt"
	"os"

	core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	envInstanceIP     = "INSTANCE_IP"
	envPodName        = "POD_NAME"
	envPodNamespace   = "POD_NAMESPACE"
	envNodeName       = "NODE_NAME"
	defaultInstanceIP = "1.1.1.1"
)

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func buildStruct(fields map[string]string) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	for k, v := range fields {
		s.Fields[k] = structpb.NewStringValue(v)
	}
	return s
}

// node builds the xDS Node identity sent on every initial request. The
// id follows "agentgateway~{ip}~{pod}.{ns}~{ns}.svc.cluster.local", the
// same scheme used by Istio's own proxy node IDs.
func (c *Config) node() *core.Node {
	gwName := c.proxyMetadata["GATEWAY_NAME"]
	role := fmt.Sprintf("%s~%s", c.podNamespace, gwName)

	fields := map[string]string{
		"NAME":         c.podName,
		"NAMESPACE":    c.podNamespace,
		"INSTANCE_IPS": c.instanceIP,
		"NODE_NAME":    c.nodeName,
		"role":         role,
	}
	metadata := buildStruct(fields)
	for k, v := range c.proxyMetadata {
		metadata.Fields[k] = structpb.NewStringValue(v)
	}

	return &core.Node{
		Id: fmt.Sprintf("agentgateway~%s~%s.%s~%s.svc.cluster.local",
			c.instanceIP, c.podName, c.podNamespace, c.podNamespace),
		Metadata: metadata,
	}
}
