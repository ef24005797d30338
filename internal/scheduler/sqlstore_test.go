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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLStore(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	return store
}

func TestSQLStore_PutDueDelete(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	early := NewEntry(100, Action{Kind: ActionCompletePromise, CompletePromise: &CompletePromiseAction{PromiseID: "c/w/3"}})
	late := NewEntry(500, Action{Kind: ActionArchiveOplog, ArchiveOplog: &ArchiveOplogAction{LastOplogIndex: 7}})
	require.NoError(t, store.Put(ctx, early))
	require.NoError(t, store.Put(ctx, late))

	due, err := store.Due(ctx, 250)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, "c/w/3", due[0].Action.CompletePromise.PromiseID)

	require.NoError(t, store.Delete(ctx, early.ID))

	due, err = store.Due(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ActionArchiveOplog, due[0].Action.Kind)
}

func TestSQLStore_RebindPostgresPlaceholders(t *testing.T) {
	s := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t,
		`INSERT INTO schedule_entries (id, deadline_ms, action) VALUES ($1, $2, $3)`,
		s.rebind(`INSERT INTO schedule_entries (id, deadline_ms, action) VALUES (?, ?, ?)`))
}
