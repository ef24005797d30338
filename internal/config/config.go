// Copyright 2025 Tom Barlow
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

// Package config provides worker-executor node configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for a worker-executor node. Fields carry
// yaml tags so the same struct backs both env-var overrides (Load) and a
// config file (LoadFile), with the file layered under env/flag overrides.
type Config struct {
	Listen      ListenConfig      `yaml:"listen"`
	Oplog       OplogConfig       `yaml:"oplog"`
	Distributed DistributedConfig `yaml:"distributed"`
	Retry       RetryConfig       `yaml:"retry"`
	Outbound    OutboundConfig    `yaml:"outbound"`
	Worker      WorkerConfig      `yaml:"worker"`
	Log         LogConfig         `yaml:"log"`
}

// ListenConfig configures the node's control-plane and worker-RPC listeners.
type ListenConfig struct {
	// GRPCAddr is the control-plane gRPC listen address.
	GRPCAddr string `yaml:"grpc_addr"`

	// RPCAddr is the worker-to-worker RPC listen address.
	RPCAddr string `yaml:"rpc_addr"`

	// MetricsAddr serves the Prometheus metrics endpoint; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// OplogConfig configures the oplog storage tier.
type OplogConfig struct {
	// Backend selects the oplog storage implementation: "memory", "sqlite", or "postgres".
	Backend string `yaml:"backend"`

	// DSN is the connection string for sqlite/postgres backends.
	DSN string `yaml:"dsn"`

	// InlineThreshold is the maximum payload size, in bytes, kept inline in an
	// oplog entry before it is externalized to the blob store.
	InlineThreshold int `yaml:"inline_threshold"`

	// ArchiveAfter is how long a shard of committed oplog entries waits
	// before being eligible for the scheduled ArchiveOplog action.
	ArchiveAfter time.Duration `yaml:"archive_after"`
}

// DistributedConfig configures multi-node shard ownership.
type DistributedConfig struct {
	// Enabled turns on Postgres-advisory-lock based shard leadership.
	Enabled bool `yaml:"enabled"`

	// ShardCount is the total number of shards workers are partitioned across.
	ShardCount int `yaml:"shard_count"`

	// InstanceID uniquely identifies this executor node for leader election.
	InstanceID string `yaml:"instance_id"`
}

// RetryConfig holds the default worker retry policy, overridable per-worker
// via a ChangeRetryPolicy oplog entry.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	MinDelay        time.Duration `yaml:"min_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	Multiplier      float64       `yaml:"multiplier"`
	MaxJitterFactor float64       `yaml:"max_jitter_factor"`
}

// OutboundConfig configures the transport chain workers' outgoing HTTP
// host calls deliver through.
type OutboundConfig struct {
	// Auth selects credential injection for outgoing requests: "none",
	// "aws-sigv4", or "oauth2".
	Auth string `yaml:"auth"`

	// AWSRegion/AWSService name the SigV4 signing scope when Auth is
	// "aws-sigv4".
	AWSRegion  string `yaml:"aws_region"`
	AWSService string `yaml:"aws_service"`

	// OAuth2* configure the client-credentials grant when Auth is "oauth2".
	OAuth2TokenURL     string   `yaml:"oauth2_token_url"`
	OAuth2ClientID     string   `yaml:"oauth2_client_id"`
	OAuth2ClientSecret string   `yaml:"oauth2_client_secret"`
	OAuth2Scopes       []string `yaml:"oauth2_scopes"`

	// RateLimit bounds outgoing requests per second across the node's
	// workers; 0 disables limiting. Burst defaults to the integer part of
	// the rate plus one when 0.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// WorkerConfig bounds individual workers.
type WorkerConfig struct {
	// MaxLinearMemoryBytes caps a worker's linear memory; growth past the
	// cap fails the worker with a non-retriable OutOfMemory error. 0 means
	// unlimited.
	MaxLinearMemoryBytes uint64 `yaml:"max_linear_memory_bytes"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible single-node defaults.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			GRPCAddr:    "127.0.0.1:9091",
			RPCAddr:     "127.0.0.1:9092",
			MetricsAddr: "127.0.0.1:9094",
		},
		Oplog: OplogConfig{
			Backend:         "memory",
			InlineThreshold: 16 * 1024,
			ArchiveAfter:    24 * time.Hour,
		},
		Distributed: DistributedConfig{
			Enabled:    false,
			ShardCount: 1,
			InstanceID: "",
		},
		Retry: RetryConfig{
			MaxAttempts:     5,
			MinDelay:        time.Second,
			MaxDelay:        time.Minute,
			Multiplier:      2.0,
			MaxJitterFactor: 0.1,
		},
		Outbound: OutboundConfig{
			Auth: "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, overridden by a YAML file named in
// GOLEM_CONFIG_FILE (if set) and then by GOLEM_* environment variables -
// env always wins over file, file always wins over Default.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("GOLEM_CONFIG_FILE"); path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading GOLEM_CONFIG_FILE: %w", err)
		}
	}

	if v := os.Getenv("GOLEM_GRPC_ADDR"); v != "" {
		cfg.Listen.GRPCAddr = v
	}
	if v := os.Getenv("GOLEM_RPC_ADDR"); v != "" {
		cfg.Listen.RPCAddr = v
	}
	if v := os.Getenv("GOLEM_OPLOG_BACKEND"); v != "" {
		cfg.Oplog.Backend = v
	}
	if v := os.Getenv("GOLEM_OPLOG_DSN"); v != "" {
		cfg.Oplog.DSN = v
	}
	if v := os.Getenv("GOLEM_OPLOG_INLINE_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GOLEM_OPLOG_INLINE_THRESHOLD: %w", err)
		}
		cfg.Oplog.InlineThreshold = n
	}
	if v := os.Getenv("GOLEM_SHARD_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GOLEM_SHARD_COUNT: %w", err)
		}
		cfg.Distributed.ShardCount = n
		cfg.Distributed.Enabled = n > 1
	}
	if v := os.Getenv("GOLEM_INSTANCE_ID"); v != "" {
		cfg.Distributed.InstanceID = v
	}
	if v := os.Getenv("GOLEM_OUTBOUND_AUTH"); v != "" {
		cfg.Outbound.Auth = v
	}
	if v := os.Getenv("GOLEM_MAX_LINEAR_MEMORY_BYTES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GOLEM_MAX_LINEAR_MEMORY_BYTES: %w", err)
		}
		cfg.Worker.MaxLinearMemoryBytes = n
	}
	if v := os.Getenv("GOLEM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
