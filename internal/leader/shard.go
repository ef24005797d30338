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

package leader

import (
	"context"
	"database/sql"
	"hash/fnv"
	"log/slog"

	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

// ShardID is one slice of the worker namespace, owned by exactly one
// executor node at a time in a fleet.
type ShardID uint32

// ShardIDFor hashes componentID into one of shardCount shards with FNV-1a,
// the same string-to-bucket approach a consistent-hash router uses: stable
// across processes since it depends only on the input bytes, never on
// iteration or map order.
func ShardIDFor(componentID string, shardCount uint32) ShardID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(componentID))
	return ShardID(h.Sum32() % shardCount)
}

// Manager generalizes Elector from "one node, one lock, one leader" to "one
// node, N locks, one leader per shard": each shard is a separate Postgres
// advisory lock, so ownership of the worker namespace is range-partitioned
// across a fleet instead of concentrated on a single leader. A single-shard
// Manager degenerates to plain leader election.
type Manager struct {
	shardCount uint32
	electors   map[ShardID]*Elector
	logger     *slog.Logger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// DB is the database connection backing every shard's advisory lock.
	DB *sql.DB

	// InstanceID uniquely identifies this node.
	InstanceID string

	// ShardCount is the total number of shards the worker namespace is
	// partitioned into; every node in the fleet must agree on this value.
	ShardCount uint32

	Logger *slog.Logger
}

// NewManager creates one Elector per shard in [0, cfg.ShardCount), each
// built with that shard as its Config.Shard so AdvisoryLockID gives it a
// distinct lock directly - there is no separate default-lock path to
// override afterward, every Elector here is shard-scoped from construction.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.ShardCount == 0 {
		cfg.ShardCount = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	electors := make(map[ShardID]*Elector, cfg.ShardCount)
	for i := uint32(0); i < cfg.ShardCount; i++ {
		shard := ShardID(i)
		electors[shard] = NewElector(Config{
			DB:         cfg.DB,
			InstanceID: cfg.InstanceID,
			Shard:      shard,
			Logger:     logger,
		})
	}

	return &Manager{
		shardCount: cfg.ShardCount,
		electors:   electors,
		logger:     logger.With(slog.String("component", "shard-manager")),
	}
}

// Start begins contending for every shard's lock concurrently.
func (m *Manager) Start(ctx context.Context) {
	for _, e := range m.electors {
		e.Start(ctx)
	}
}

// Stop releases every shard this node holds and waits for each elector's
// loop to exit.
func (m *Manager) Stop() {
	for _, e := range m.electors {
		e.Stop()
	}
}

// Owns reports whether this node currently holds shard's advisory lock.
func (m *Manager) Owns(shard ShardID) bool {
	e, ok := m.electors[shard]
	if !ok {
		return false
	}
	return e.IsLeader()
}

// OwnedShards lists every shard this node currently holds, in ascending
// order, for golemerr.InvalidShardId's diagnostic payload.
func (m *Manager) OwnedShards() []uint32 {
	var owned []uint32
	for i := uint32(0); i < m.shardCount; i++ {
		if m.Owns(ShardID(i)) {
			owned = append(owned, i)
		}
	}
	return owned
}

// Route resolves componentID to its shard and verifies this node owns it,
// returning golemerr.InvalidShardId (naming both the requested shard and
// this node's actually-owned shards) when it does not - the signal a
// gateway or RPC caller uses to retry against the right node.
func (m *Manager) Route(componentID string) (ShardID, error) {
	shard := ShardIDFor(componentID, m.shardCount)
	if !m.Owns(shard) {
		return shard, golemerr.InvalidShardId(uint32(shard), m.OwnedShards())
	}
	return shard, nil
}
