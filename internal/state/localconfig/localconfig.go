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

// Package localconfig parses the YAML form of the local (non-xDS)
// configuration source into the same shape the state manager applies
// from xDS: binds, policies, backends, services, and workloads.
package localconfig

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"agentgateway.dev/agentgateway/internal/state/config"
)

// Config is the normalized form of a local configuration file.
type Config struct {
	Binds     []config.Bind
	Policies  []config.Policy
	Backends  []config.Backend
	Services  []config.Service
	Workloads []config.Workload
}

// wireConfig is the on-disk YAML shape; field names match common
// agentgateway local-config samples (binds keyed by listener name,
// resources as flat lists under their own top-level keys).
type wireConfig struct {
	Binds []struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
	} `yaml:"binds"`
	Policies []struct {
		Name   string `yaml:"name"`
		Target string `yaml:"target"`
	} `yaml:"policies"`
	Backends []struct {
		Name   string `yaml:"name"`
		Target string `yaml:"target"`
	} `yaml:"backends"`
	Services []struct {
		Name     string `yaml:"name"`
		Hostname string `yaml:"hostname"`
	} `yaml:"services"`
	Workloads []struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
	} `yaml:"workloads"`
}

// Parse normalizes the YAML content of a local config file.
func Parse(content string) (Config, error) {
	var wc wireConfig
	if err := yaml.Unmarshal([]byte(content), &wc); err != nil {
		return Config{}, fmt.Errorf("parsing local config: %w", err)
	}

	cfg := Config{}
	for _, b := range wc.Binds {
		cfg.Binds = append(cfg.Binds, config.Bind{Name: b.Name, Address: b.Address})
	}
	for _, p := range wc.Policies {
		cfg.Policies = append(cfg.Policies, config.Policy{Name: p.Name, Target: p.Target})
	}
	for _, b := range wc.Backends {
		cfg.Backends = append(cfg.Backends, config.Backend{Name: b.Name, Target: b.Target})
	}
	for _, s := range wc.Services {
		cfg.Services = append(cfg.Services, config.Service{Name: s.Name, Hostname: s.Hostname})
	}
	for _, w := range wc.Workloads {
		cfg.Workloads = append(cfg.Workloads, config.Workload{Name: w.Name, Address: w.Address})
	}
	return cfg, nil
}
