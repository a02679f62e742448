/*
httpq — multi-threaded HTTP file server with pluggable request scheduling
Copyright (C) 2025  httpq authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package config holds the server configuration: defaults, the optional
// YAML file, and the scheduler selection rules.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kresge/httpq/internal/logging"
)

// Scheduler policy names accepted on the command line, in the
// environment, and in the config file.
const (
	SchedulerFIFO = "fifo"
	SchedulerSJF  = "sjf"
)

// SchedulerEnvVar is consulted when no --scheduler flag is given.
const SchedulerEnvVar = "SCHEDULER"

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workers   WorkersConfig   `yaml:"workers"`
	Docroot   string          `yaml:"docroot"`
	Scheduler string          `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	AccessLog AccessLogConfig `yaml:"access_log"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the listening socket and accept loop.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AcceptRate caps accepted connections per second; 0 disables it.
	AcceptRate float64 `yaml:"accept_rate"`
}

// WorkersConfig configures the pool.
type WorkersConfig struct {
	Count int `yaml:"count"`
}

// MetricsConfig configures the optional scrape endpoint. Empty address
// means no endpoint; the stderr reporter always runs.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AccessLogConfig configures the optional binary access log.
type AccessLogConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures diagnostic verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Workers:   WorkersConfig{Count: 4},
		Docroot:   "./www",
		Scheduler: SchedulerSJF,
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Workers.Count < 1 {
		return fmt.Errorf("number of workers must be at least 1")
	}
	if c.Docroot == "" {
		return fmt.Errorf("docroot must not be empty")
	}
	if c.Server.AcceptRate < 0 {
		return fmt.Errorf("accept_rate must be >= 0")
	}
	return nil
}

// ResolveScheduler applies the selection precedence: the command-line
// flag wins over the environment, which wins over the config file.
// Unknown values emit a warning and fall back to SJF.
func (c *Config) ResolveScheduler(flagValue, envValue string, log *logging.Logger) string {
	chosen := c.Scheduler
	if envValue != "" {
		chosen = envValue
	}
	if flagValue != "" {
		chosen = flagValue
	}
	switch chosen {
	case SchedulerFIFO, SchedulerSJF:
		return chosen
	case "":
		return SchedulerSJF
	default:
		log.Warn("unknown scheduler %q, falling back to %s", chosen, SchedulerSJF)
		return SchedulerSJF
	}
}
