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

// Command conductord is the worker-executor node binary: `serve` runs the
// control-plane gRPC surface and timer wheel, `status` and `oplog dump` are
// thin ops tooling against the same oplog backend a running node uses.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/golemcloud/worker-executor/internal/config"
	"github.com/golemcloud/worker-executor/internal/log"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// flags shared across subcommands, layered on top of config.Load()'s
// environment-derived defaults.
type rootFlags struct {
	grpcAddr     string
	oplogBackend string
	oplogDSN     string
	distributed  bool
	instanceID   string
	shardCount   int
}

func (f *rootFlags) apply(cfg *config.Config) {
	if f.grpcAddr != "" {
		cfg.Listen.GRPCAddr = f.grpcAddr
	}
	if f.oplogBackend != "" {
		cfg.Oplog.Backend = f.oplogBackend
	}
	if f.oplogDSN != "" {
		cfg.Oplog.DSN = f.oplogDSN
	}
	if f.distributed {
		cfg.Distributed.Enabled = true
	}
	if f.instanceID != "" {
		cfg.Distributed.InstanceID = f.instanceID
	}
	if f.shardCount > 0 {
		cfg.Distributed.ShardCount = f.shardCount
	}
}

func main() {
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	if err := newRootCommand(logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "worker-executor",
		Short:         "Golem worker-executor node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.grpcAddr, "grpc-addr", "", "Control-plane gRPC listen address")
	root.PersistentFlags().StringVar(&flags.oplogBackend, "oplog-backend", "", "Oplog storage backend (memory, sqlite, postgres)")
	root.PersistentFlags().StringVar(&flags.oplogDSN, "oplog-dsn", "", "Oplog backend connection string")
	root.PersistentFlags().BoolVar(&flags.distributed, "distributed", false, "Enable distributed shard leadership")
	root.PersistentFlags().StringVar(&flags.instanceID, "instance-id", "", "Instance ID for distributed mode")
	root.PersistentFlags().IntVar(&flags.shardCount, "shard-count", 0, "Total number of shards (distributed mode)")

	root.AddCommand(newVersionCommand())
	root.AddCommand(newServeCommand(flags, logger))
	root.AddCommand(newStatusCommand(flags, logger))
	root.AddCommand(newOplogCommand(flags, logger))

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "conductord %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return nil
		},
	}
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	flags.apply(cfg)
	return cfg, nil
}
