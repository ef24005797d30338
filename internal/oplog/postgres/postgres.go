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

// Package postgres provides the distributed-tier oplog store, for
// multi-node executor fleets sharing one durable backing store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golemcloud/worker-executor/internal/oplog"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ oplog.Store = (*Store)(nil)

// Config contains PostgreSQL connection configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection URL.
	ConnectionString string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a PostgreSQL-backed oplog.Store.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL-backed Store, running migrations if needed.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS oplog_entries (
			component_id TEXT NOT NULL,
			worker_name TEXT NOT NULL,
			idx BIGINT NOT NULL,
			kind TEXT NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (component_id, worker_name, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS oplog_payloads (
			component_id TEXT NOT NULL,
			worker_name TEXT NOT NULL,
			payload_id TEXT NOT NULL,
			data BYTEA NOT NULL,
			PRIMARY KEY (component_id, worker_name, payload_id)
		)`,
		`CREATE TABLE IF NOT EXISTS oplog_archive_marks (
			component_id TEXT NOT NULL,
			worker_name TEXT NOT NULL,
			archived_upto BIGINT NOT NULL,
			PRIMARY KEY (component_id, worker_name)
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Append implements oplog.Appender, relying on the primary key to reject a
// duplicate or out-of-order index under concurrent writers.
func (s *Store) Append(ctx context.Context, worker oplog.WorkerID, entry oplog.Entry) error {
	var last sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT MAX(idx) FROM oplog_entries WHERE component_id = $1 AND worker_name = $2`,
		worker.ComponentID, worker.WorkerName)
	if err := row.Scan(&last); err != nil {
		return fmt.Errorf("query last index: %w", err)
	}
	expected := last.Int64 + 1
	if int64(entry.Index) != expected {
		return fmt.Errorf("oplog append out of order: got index %d, expected %d", entry.Index, expected)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO oplog_entries (component_id, worker_name, idx, kind, data) VALUES ($1, $2, $3, $4, $5)`,
		worker.ComponentID, worker.WorkerName, entry.Index, entry.Kind, data)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Read implements oplog.Reader.
func (s *Store) Read(ctx context.Context, worker oplog.WorkerID, from, to oplog.Index) ([]oplog.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM oplog_entries WHERE component_id = $1 AND worker_name = $2 AND idx BETWEEN $3 AND $4 ORDER BY idx`,
		worker.ComponentID, worker.WorkerName, from, to)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []oplog.Entry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var e oplog.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastIndex implements oplog.Reader.
func (s *Store) LastIndex(ctx context.Context, worker oplog.WorkerID) (oplog.Index, error) {
	var last sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT MAX(idx) FROM oplog_entries WHERE component_id = $1 AND worker_name = $2`,
		worker.ComponentID, worker.WorkerName)
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("query last index: %w", err)
	}
	return oplog.Index(last.Int64), nil
}

// PutPayload implements oplog.PayloadStore.
func (s *Store) PutPayload(ctx context.Context, worker oplog.WorkerID, payloadID string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oplog_payloads (component_id, worker_name, payload_id, data) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (component_id, worker_name, payload_id) DO UPDATE SET data = excluded.data`,
		worker.ComponentID, worker.WorkerName, payloadID, data)
	if err != nil {
		return fmt.Errorf("insert payload: %w", err)
	}
	return nil
}

// GetPayload implements oplog.PayloadStore.
func (s *Store) GetPayload(ctx context.Context, worker oplog.WorkerID, payloadID string) ([]byte, error) {
	var data []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM oplog_payloads WHERE component_id = $1 AND worker_name = $2 AND payload_id = $3`,
		worker.ComponentID, worker.WorkerName, payloadID)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payload not found: %s", payloadID)
		}
		return nil, fmt.Errorf("query payload: %w", err)
	}
	return data, nil
}

// Archive implements oplog.Archiver, recording the archived watermark for
// this worker. No bytes are moved to a blob store, here or by the
// scheduler's ArchiveOplog action, which only calls Archive.
func (s *Store) Archive(ctx context.Context, worker oplog.WorkerID, upTo oplog.Index) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oplog_archive_marks (component_id, worker_name, archived_upto) VALUES ($1, $2, $3)
		 ON CONFLICT (component_id, worker_name) DO UPDATE SET archived_upto = excluded.archived_upto`,
		worker.ComponentID, worker.WorkerName, upTo)
	if err != nil {
		return fmt.Errorf("record archive mark: %w", err)
	}
	return nil
}

// DropPrefixUpTo implements oplog.PrefixDropper. As in the SQLite tier, the
// tail entry is never droppable since the next append index derives from
// MAX(idx).
func (s *Store) DropPrefixUpTo(ctx context.Context, worker oplog.WorkerID, upTo oplog.Index) error {
	last, err := s.LastIndex(ctx, worker)
	if err != nil {
		return err
	}
	if upTo >= last {
		return fmt.Errorf("cannot drop prefix up to %d: tail entry %d must remain hot", upTo, last)
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM oplog_entries WHERE component_id = $1 AND worker_name = $2 AND idx <= $3`,
		worker.ComponentID, worker.WorkerName, upTo)
	if err != nil {
		return fmt.Errorf("drop prefix: %w", err)
	}
	return nil
}

// Close implements io.Closer.
func (s *Store) Close() error {
	return s.db.Close()
}
