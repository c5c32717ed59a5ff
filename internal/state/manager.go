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

// Package state owns the domain Stores (binds/policies/backends and
// services/workloads) and routes updates into them from either a
// delta xDS client or a local configuration file.
package state

import (
	"context"
	"fmt"
	"os"

	"agentgateway.dev/agentgateway/internal/state/localconfig"
	"agentgateway.dev/agentgateway/internal/strng"
	"agentgateway.dev/agentgateway/internal/xds"

	"istio.io/pkg/log"
)

var scope = log.RegisterScope("state", "state manager and local config reload", 0)

// Resource type URLs this gateway understands over xDS. AuthorizationType
// is declared but intentionally left without a registered handler: no
// authorization store exists yet, matching the commented-out handler in
// the reference state manager this is ported from.
var (
	AddressType       = strng.New("type.googleapis.com/agentgateway.dev.workload.Address")
	AuthorizationType = strng.New("type.googleapis.com/istio.security.Authorization")
	ResourceType      = strng.New("type.googleapis.com/agentgateway.dev.resource.Resource")
)

// Config describes how the state manager should obtain configuration:
// at most one of Address or LocalConfigPath should be set.
type Config struct {
	Address         string
	GatewayName     string
	Namespace       string
	OnDemand        bool
	LocalConfigPath string
}

// Manager owns the Stores and whichever client (xDS or local file)
// populates them.
type Manager struct {
	stores    Stores
	xdsClient *xds.Client
}

// New builds a Manager per cfg. If cfg.Address is set, an xDS client is
// built with handlers for the Address and Resource types. If
// cfg.LocalConfigPath is set, the local file is loaded once and then
// watched for changes.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	stores := NewStores()

	var client *xds.Client
	if cfg.Address != "" {
		xc := xds.NewConfig(cfg.Address, cfg.GatewayName, cfg.Namespace).WithOnDemand(cfg.OnDemand)
		xds.WithWatchedHandler(xc, AddressType, newWorkloadAddress, workloadHandler{discovery: stores.Discovery})
		xds.WithWatchedHandler(xc, ResourceType, newAgentResource, resourceHandler{binds: stores.Binds})
		client = xc.Build()
	}

	m := &Manager{stores: stores, xdsClient: client}

	if cfg.LocalConfigPath != "" {
		lc := &localClient{path: cfg.LocalConfigPath, stores: stores}
		if err := lc.run(ctx); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Stores returns the domain state; safe to share across goroutines.
func (m *Manager) Stores() Stores {
	return m.stores
}

// Run drives the xDS client's connect/reconnect loop, if one was
// configured. It returns immediately if this Manager only uses local
// configuration.
func (m *Manager) Run(ctx context.Context) error {
	if m.xdsClient == nil {
		return nil
	}
	return m.xdsClient.Run(ctx)
}

// PreviousState is threaded across reloads so each one can diff
// against what the last reload applied.
type PreviousState struct {
	Binds     BindPreviousState
	Discovery DiscoveryPreviousState
}

// localClient is the local-file alternative to an xDS connection,
// intended for testing and for gateways run without a control plane.
type localClient struct {
	path   string
	stores Stores
}

func (l *localClient) run(ctx context.Context) error {
	next, err := l.reload(PreviousState{})
	if err != nil {
		return err
	}

	return watchFile(ctx, l.path, func() {
		n, err := l.reload(next)
		if err != nil {
			scope.Errorf("failed to reload config: %v", err)
			return
		}
		next = n
		scope.Info("config reloaded successfully")
	})
}

func (l *localClient) reload(prev PreviousState) (PreviousState, error) {
	content, err := os.ReadFile(l.path)
	if err != nil {
		return PreviousState{}, fmt.Errorf("reading local config %s: %w", l.path, err)
	}
	cfg, err := localconfig.Parse(string(content))
	if err != nil {
		return PreviousState{}, err
	}
	scope.Infof("loaded config from %s", l.path)

	nextBinds := l.stores.Binds.SyncLocal(cfg.Binds, cfg.Policies, cfg.Backends, prev.Binds)
	nextDiscovery, err := l.stores.Discovery.SyncLocal(cfg.Services, cfg.Workloads, prev.Discovery)
	if err != nil {
		return PreviousState{}, err
	}

	return PreviousState{Binds: nextBinds, Discovery: nextDiscovery}, nil
}
