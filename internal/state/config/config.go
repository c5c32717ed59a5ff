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

// Package config holds the domain types shared between the state
// manager's stores and its configuration sources (xDS, local file),
// kept dependency-free so either side can import it without a cycle.
package config

// Bind, Policy, and Backend make up the binds/listener half of the
// domain model; Service and Workload make up the service-discovery
// half. Their internal shape is not specified beyond "has a name" —
// request-handling that reads them is out of scope here.
type (
	Bind struct {
		Name    string
		Address string
	}
	Policy struct {
		Name   string
		Target string
	}
	Backend struct {
		Name   string
		Target string
	}
	Service struct {
		Name     string
		Hostname string
	}
	Workload struct {
		Name    string
		Address string
	}
)
