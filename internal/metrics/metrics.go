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

// Package metrics holds the process-wide counters the xDS client and
// state manager report against. It is a thin layer over
// istio.io/pkg/monitoring, which itself wraps prometheus/client_golang.
package metrics

import "istio.io/pkg/monitoring"

// TerminationReason classifies why a single xDS connection ended.
type TerminationReason string

const (
	ConnectionError TerminationReason = "connection_error"
	Reconnect       TerminationReason = "reconnect"
	Error           TerminationReason = "error"
	Complete        TerminationReason = "complete"
)

var (
	reasonLabel = monitoring.MustCreateLabel("reason")
	typeLabel   = monitoring.MustCreateLabel("type")

	connectionTerminations = monitoring.NewSum(
		"xds_connection_terminations_total",
		"Number of xDS stream connections that ended, by reason.",
		monitoring.WithLabels(reasonLabel),
	)

	discoveryResponses = monitoring.NewSum(
		"xds_discovery_responses_total",
		"Number of DeltaDiscoveryResponse messages received, by resource type.",
		monitoring.WithLabels(typeLabel),
	)
)

func init() {
	monitoring.MustRegister(connectionTerminations, discoveryResponses)
}

// RecordTermination increments the connection-termination counter for reason.
func RecordTermination(reason TerminationReason) {
	connectionTerminations.With(reasonLabel.Value(string(reason))).Increment()
}

// RecordDiscoveryResponse increments the per-type discovery-response counter.
func RecordDiscoveryResponse(typeURL string) {
	discoveryResponses.With(typeLabel.Value(typeURL)).Increment()
}
