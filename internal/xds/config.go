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
	discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"google.golang.org/protobuf/proto"

	"agentgateway.dev/agentgateway/internal/strng"
)

// Config describes how to connect to an xDS control plane and which
// resource types to watch.
type Config struct {
	address string

	proxyMetadata map[string]string
	handlers      map[strng.Str]rawHandler
	initialReqs   []*discovery.DeltaDiscoveryRequest
	onDemand      bool

	instanceIP   string
	podName      string
	podNamespace string
	nodeName     string
}

// NewConfig constructs a Config for connecting to address, identifying
// itself as gatewayName within namespace.
func NewConfig(address, gatewayName, namespace string) *Config {
	return &Config{
		address:  address,
		handlers: map[strng.Str]rawHandler{},
		proxyMetadata: map[string]string{
			"GATEWAY_NAME": gatewayName,
			"NAMESPACE":    namespace,
		},
		instanceIP:   envOr(envInstanceIP, defaultInstanceIP),
		podName:      envOr(envPodName, ""),
		podNamespace: envOr(envPodNamespace, ""),
		nodeName:     envOr(envNodeName, ""),
	}
}

// WithOnDemand enables on-demand resource subscription for any handler
// that does not opt out via NoOnDemand.
func (c *Config) WithOnDemand(onDemand bool) *Config {
	c.onDemand = onDemand
	return c
}

// WithWatchedHandler registers h for typeURL and arranges an initial
// subscribe/unsubscribe request for it (§4.1 "on-demand interaction").
// newMsg must return a fresh, empty instance of T for decoding.
func WithWatchedHandler[T proto.Message](c *Config, typeURL strng.Str, newMsg func() T, h Handler[T]) *Config {
	c.handlers[typeURL] = &handlerWrapper[T]{newMsg: newMsg, h: h}
	c.initialReqs = append(c.initialReqs, c.constructInitialRequest(typeURL, h.NoOnDemand()))
	return c
}

func (c *Config) constructInitialRequest(typeURL strng.Str, noOnDemand bool) *discovery.DeltaDiscoveryRequest {
	var sub, unsub []string
	if !noOnDemand && c.onDemand {
		// xDS has no way to subscribe to zero resources, so we subscribe
		// and unsubscribe from the wildcard in the same request, which
		// nets out to "subscribe to nothing, but expect pushes later".
		sub = []string{"*"}
		unsub = []string{"*"}
	}
	return &discovery.DeltaDiscoveryRequest{
		TypeUrl:                  typeURL.String(),
		Node:                     c.node(),
		ResourceNamesSubscribe:   sub,
		ResourceNamesUnsubscribe: unsub,
	}
}

// Build constructs a Client from this Config.
func (c *Config) Build() *Client {
	return newClient(c)
}
