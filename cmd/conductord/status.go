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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

// newStatusCommand reports a single worker's durability-core status
// directly from the oplog backend, without going through the control-plane
// gRPC surface - an ops tool for diagnosing a worker when the node process
// itself cannot be reached or trusted.
func newStatusCommand(flags *rootFlags, logger *slog.Logger) *cobra.Command {
	var componentID, workerName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report a worker's last oplog index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if componentID == "" || workerName == "" {
				return fmt.Errorf("--component-id and --worker-name are required")
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			store, closeStore, err := openOplogStore(cfg)
			if err != nil {
				return fmt.Errorf("opening oplog store: %w", err)
			}
			defer closeStore()

			worker := oplog.WorkerID{ComponentID: componentID, WorkerName: workerName}
			last, err := store.LastIndex(context.Background(), worker)
			if err != nil {
				return fmt.Errorf("reading last oplog index: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: last_oplog_index=%d\n", componentID, workerName, last)
			return nil
		},
	}
	cmd.Flags().StringVar(&componentID, "component-id", "", "Component ID of the worker to inspect")
	cmd.Flags().StringVar(&workerName, "worker-name", "", "Worker name to inspect")
	return cmd
}
