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
	"database/sql"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/config"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/oplog/memory"
	"github.com/golemcloud/worker-executor/internal/oplog/postgres"
	"github.com/golemcloud/worker-executor/internal/oplog/sqlite"
	"github.com/golemcloud/worker-executor/internal/scheduler"
)

// openOplogStore selects and opens the oplog backend named by cfg, returning
// a close function that is always safe to defer (a no-op for the in-memory
// backend, which owns no external resource). Shared by `serve`, `status`,
// and `oplog dump`, so every subcommand reads the same backend a running
// node would.
func openOplogStore(cfg *config.Config) (oplog.Store, func(), error) {
	switch cfg.Oplog.Backend {
	case "", "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		store, err := sqlite.New(sqlite.Config{Path: cfg.Oplog.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite oplog store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := postgres.New(postgres.Config{ConnectionString: cfg.Oplog.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres oplog store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown oplog backend %q", cfg.Oplog.Backend)
	}
}

// openSchedulerStore pairs the timer wheel's persistence with the oplog
// backend: durable backends get a SQL-backed schedule table in the same
// database so scheduled actions survive restart, while the in-memory
// backend stays fully in-process.
func openSchedulerStore(cfg *config.Config) (scheduler.Store, func(), error) {
	switch cfg.Oplog.Backend {
	case "", "memory":
		return scheduler.NewMemoryStore(), func() {}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Oplog.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite scheduler store: %w", err)
		}
		db.SetMaxOpenConns(1)
		store, err := scheduler.NewSQLStore(context.Background(), db, scheduler.DialectSQLite)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	case "postgres":
		db, err := sql.Open("pgx", cfg.Oplog.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres scheduler store: %w", err)
		}
		store, err := scheduler.NewSQLStore(context.Background(), db, scheduler.DialectPostgres)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown oplog backend %q", cfg.Oplog.Backend)
	}
}
