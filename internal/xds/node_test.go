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
	"os"
	"testing"
)

func TestConfigNode(t *testing.T) {
	os.Setenv(envInstanceIP, "10.0.0.5")
	os.Setenv(envPodName, "my-gateway-abc")
	os.Setenv(envPodNamespace, "default")
	os.Setenv(envNodeName, "node-1")
	defer os.Unsetenv(envInstanceIP)
	defer os.Unsetenv(envPodName)
	defer os.Unsetenv(envPodNamespace)
	defer os.Unsetenv(envNodeName)

	c := NewConfig("xds.example.com:443", "my-gateway", "default")
	n := c.node()

	want := "agentgateway~10.0.0.5~my-gateway-abc.default~default.svc.cluster.local"
	if n.Id != want {
		t.Fatalf("node id = %q, want %q", n.Id, want)
	}
	if got := n.Metadata.Fields["NAME"].GetStringValue(); got != "my-gateway-abc" {
		t.Fatalf("NAME = %q, want my-gateway-abc", got)
	}
	if got := n.Metadata.Fields["GATEWAY_NAME"].GetStringValue(); got != "my-gateway" {
		t.Fatalf("GATEWAY_NAME = %q, want my-gateway", got)
	}
	if got := n.Metadata.Fields["role"].GetStringValue(); got != "default~my-gateway" {
		t.Fatalf("role = %q, want default~my-gateway", got)
	}
}

func TestConfigNodeDefaults(t *testing.T) {
	os.Unsetenv(envInstanceIP)
	os.Unsetenv(envPodName)
	os.Unsetenv(envPodNamespace)
	os.Unsetenv(envNodeName)

	c := NewConfig("xds.example.com:443", "gw", "ns")
	n := c.node()
	if got := n.Metadata.Fields["INSTANCE_IPS"].GetStringValue(); got != defaultInstanceIP {
		t.Fatalf("INSTANCE_IPS = %q, want default %q", got, defaultInstanceIP)
	}
}
