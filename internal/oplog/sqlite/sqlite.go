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

// Package sqlite provides an embeddable SQLite oplog tier for single-node
// deployments and tests, using the pure-Go modernc.org/sqlite driver so the
// worker-executor binary needs no cgo toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golemcloud/worker-executor/internal/oplog"
	_ "modernc.org/sqlite"
)

var _ oplog.Store = (*Store)(nil)

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral DB.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// Store is a SQLite-backed oplog.Store.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) a SQLite-backed Store.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY churn
	// under the worker's single-writer append discipline.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configurePragmas(ctx context.Context, wal bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if wal {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS oplog_entries (
			component_id TEXT NOT NULL,
			worker_name TEXT NOT NULL,
			idx INTEGER NOT NULL,
			kind TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (component_id, worker_name, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS oplog_payloads (
			component_id TEXT NOT NULL,
			worker_name TEXT NOT NULL,
			payload_id TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (component_id, worker_name, payload_id)
		)`,
		`CREATE TABLE IF NOT EXISTS oplog_archive_marks (
			component_id TEXT NOT NULL,
			worker_name TEXT NOT NULL,
			archived_upto INTEGER NOT NULL,
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

// Append implements oplog.Appender.
func (s *Store) Append(ctx context.Context, worker oplog.WorkerID, entry oplog.Entry) error {
	var last int64
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx), 0) FROM oplog_entries WHERE component_id = ? AND worker_name = ?`,
		worker.ComponentID, worker.WorkerName)
	if err := row.Scan(&last); err != nil {
		return fmt.Errorf("query last index: %w", err)
	}
	if int64(entry.Index) != last+1 {
		return fmt.Errorf("oplog append out of order: got index %d, expected %d", entry.Index, last+1)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO oplog_entries (component_id, worker_name, idx, kind, data) VALUES (?, ?, ?, ?, ?)`,
		worker.ComponentID, worker.WorkerName, entry.Index, entry.Kind, string(data))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Read implements oplog.Reader.
func (s *Store) Read(ctx context.Context, worker oplog.WorkerID, from, to oplog.Index) ([]oplog.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM oplog_entries WHERE component_id = ? AND worker_name = ? AND idx BETWEEN ? AND ? ORDER BY idx`,
		worker.ComponentID, worker.WorkerName, from, to)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []oplog.Entry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var e oplog.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastIndex implements oplog.Reader.
func (s *Store) LastIndex(ctx context.Context, worker oplog.WorkerID) (oplog.Index, error) {
	var last int64
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx), 0) FROM oplog_entries WHERE component_id = ? AND worker_name = ?`,
		worker.ComponentID, worker.WorkerName)
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("query last index: %w", err)
	}
	return oplog.Index(last), nil
}

// PutPayload implements oplog.PayloadStore.
func (s *Store) PutPayload(ctx context.Context, worker oplog.WorkerID, payloadID string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO oplog_payloads (component_id, worker_name, payload_id, data) VALUES (?, ?, ?, ?)`,
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
		`SELECT data FROM oplog_payloads WHERE component_id = ? AND worker_name = ? AND payload_id = ?`,
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
// this worker. Moving the actual bytes to the blob store is the
// caller's responsibility; this tier only tracks what has been archived.
func (s *Store) Archive(ctx context.Context, worker oplog.WorkerID, upTo oplog.Index) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oplog_archive_marks (component_id, worker_name, archived_upto) VALUES (?, ?, ?)
		 ON CONFLICT (component_id, worker_name) DO UPDATE SET archived_upto = excluded.archived_upto`,
		worker.ComponentID, worker.WorkerName, upTo)
	if err != nil {
		return fmt.Errorf("record archive mark: %w", err)
	}
	return nil
}

// Commit implements oplog.Committer. With synchronous=NORMAL under WAL a
// checkpoint is the durability fence; in the default rollback-journal mode
// every insert is already synced and the pragma is a no-op.
func (s *Store) Commit(ctx context.Context, worker oplog.WorkerID) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL)`); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// DropPrefixUpTo implements oplog.PrefixDropper. The newest entry is never
// droppable: Append and LastIndex derive the next index from MAX(idx), so
// the hot tier must always retain at least the tail entry.
func (s *Store) DropPrefixUpTo(ctx context.Context, worker oplog.WorkerID, upTo oplog.Index) error {
	last, err := s.LastIndex(ctx, worker)
	if err != nil {
		return err
	}
	if upTo >= last {
		return fmt.Errorf("cannot drop prefix up to %d: tail entry %d must remain hot", upTo, last)
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM oplog_entries WHERE component_id = ? AND worker_name = ? AND idx <= ?`,
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
