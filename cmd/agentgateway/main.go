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

// Command agentgateway runs the AI-aware data-plane gateway: it
// connects to a delta xDS control plane (or watches a local config
// file) to populate the binds/policies/backends and services/workloads
// state used to route and translate LLM traffic.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"agentgateway.dev/agentgateway/internal/state"

	"istio.io/pkg/log"
)

var scope = log.RegisterScope("main", "agentgateway entrypoint", 0)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		scope.Fatalf("%v", err)
	}
}

func newRootCommand() *cobra.Command {
	var (
		xdsAddress  string
		gatewayName string
		namespace   string
		localConfig string
		onDemand    bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "agentgateway",
		Short: "AI-aware data-plane gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			mgr, err := state.New(ctx, state.Config{
				Address:         xdsAddress,
				GatewayName:     gatewayName,
				Namespace:       namespace,
				OnDemand:        onDemand,
				LocalConfigPath: localConfig,
			})
			if err != nil {
				return err
			}

			go serveMetrics(metricsAddr)

			scope.Infof("agentgateway starting (xds=%q local=%q)", xdsAddress, localConfig)
			return mgr.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&xdsAddress, "xds-address", "", "delta xDS server address (host:port); mutually exclusive with --local-config")
	flags.StringVar(&gatewayName, "gateway-name", "agentgateway", "gateway name reported as this node's identity")
	flags.StringVar(&namespace, "namespace", "default", "namespace reported as this node's identity")
	flags.StringVar(&localConfig, "local-config", "", "path to a local YAML config file, watched for changes; mutually exclusive with --xds-address")
	flags.BoolVar(&onDemand, "on-demand", false, "subscribe to xDS resources on demand instead of eagerly")
	flags.StringVar(&metricsAddr, "metrics-address", ":15020", "address to serve /metrics on")

	return cmd
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		scope.Errorf("metrics server exited: %v", err)
	}
}
