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

package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Dialect selects the SQL placeholder style for a SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore is a Store persisted in the node's own database, so scheduled
// actions survive restart. It shares the oplog's database (the
// same SQLite file or Postgres cluster) rather than owning a connection.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore migrates the schedule table and returns a store over db.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	_, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schedule_entries (
			id TEXT PRIMARY KEY,
			deadline_ms BIGINT NOT NULL,
			action TEXT NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("migrate schedule table: %w", err)
	}
	return s, nil
}

// rebind rewrites ?-placeholders into the dialect's own style.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Put implements Store.
func (s *SQLStore) Put(ctx context.Context, e Entry) error {
	action, err := json.Marshal(e.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO schedule_entries (id, deadline_ms, action) VALUES (?, ?, ?)`),
		e.ID.String(), e.DeadlineMs, string(action))
	if err != nil {
		return fmt.Errorf("insert schedule entry: %w", err)
	}
	return nil
}

// Due implements Store.
func (s *SQLStore) Due(ctx context.Context, nowMs int64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, deadline_ms, action FROM schedule_entries WHERE deadline_ms <= ? ORDER BY deadline_ms`),
		nowMs)
	if err != nil {
		return nil, fmt.Errorf("query due entries: %w", err)
	}
	defer rows.Close()

	var due []Entry
	for rows.Next() {
		var (
			id       string
			deadline int64
			action   string
		)
		if err := rows.Scan(&id, &deadline, &action); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("schedule entry id %q: %w", id, err)
		}
		var a Action
		if err := json.Unmarshal([]byte(action), &a); err != nil {
			return nil, fmt.Errorf("unmarshal action for %s: %w", id, err)
		}
		due = append(due, Entry{ID: parsed, DeadlineMs: deadline, Action: a})
	}
	return due, rows.Err()
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM schedule_entries WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	return nil
}
