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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

func newOplogCommand(flags *rootFlags, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oplog",
		Short: "Inspect a worker's oplog",
	}
	cmd.AddCommand(newOplogDumpCommand(flags, logger))
	return cmd
}

// newOplogDumpCommand prints a worker's committed entries as JSON lines,
// the read path this repo's durability guarantees are meant to make
// trustworthy: what dump shows is exactly what replay.Engine would fold
// over to reconstruct that worker's state.
func newOplogDumpCommand(flags *rootFlags, logger *slog.Logger) *cobra.Command {
	var componentID, workerName string
	var from, to uint64

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump a worker's oplog entries as JSON lines",
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
			ctx := context.Background()

			toIdx := oplog.Index(to)
			if toIdx == 0 {
				last, err := store.LastIndex(ctx, worker)
				if err != nil {
					return fmt.Errorf("reading last oplog index: %w", err)
				}
				toIdx = last
			}

			entries, err := store.Read(ctx, worker, oplog.Index(from), toIdx)
			if err != nil {
				return fmt.Errorf("reading oplog entries: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return fmt.Errorf("encoding oplog entry %d: %w", e.Index, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&componentID, "component-id", "", "Component ID of the worker to inspect")
	cmd.Flags().StringVar(&workerName, "worker-name", "", "Worker name to inspect")
	cmd.Flags().Uint64Var(&from, "from", 1, "First oplog index to dump, inclusive")
	cmd.Flags().Uint64Var(&to, "to", 0, "Last oplog index to dump, inclusive (0 means the worker's last index)")
	return cmd
}
