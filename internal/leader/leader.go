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

// Package leader provides leader election over shards of the worker
// namespace, using PostgreSQL advisory locks: each Elector contends for one
// shard's lock, and a node that owns a shard is the sole owner of every
// worker whose component ID hashes into it.
package leader

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"
)

// baseAdvisoryLockID namespaces every lock this package takes so it can't
// collide with an advisory lock some other application holds in the same
// database. Its eight bytes are the ASCII encoding of "conductd".
const baseAdvisoryLockID int64 = 0x636F6E6475637464 // "conductd" in hex (truncated)

// AdvisoryLockID returns the Postgres advisory lock id for shard's slice of
// the worker namespace. Every shard's id is baseAdvisoryLockID XORed with
// its own index, so no two shards ever contend for the same lock; shard 0
// is also the lock an unsharded, single-node deployment contends for,
// since XORing with zero leaves baseAdvisoryLockID unchanged.
func AdvisoryLockID(shard ShardID) int64 {
	return baseAdvisoryLockID ^ int64(shard)
}

// Elector manages leader election over one shard's advisory lock.
type Elector struct {
	db         *sql.DB
	instanceID string
	shard      ShardID
	lockID     int64
	isLeader   bool
	mu         sync.RWMutex
	stopCh     chan struct{}
	doneCh     chan struct{}
	callbacks  []func(isLeader bool)
	logger     *slog.Logger

	retryInterval time.Duration
}

// Config contains leader election configuration.
type Config struct {
	// DB is the database connection.
	DB *sql.DB

	// InstanceID uniquely identifies this controller instance.
	InstanceID string

	// Shard is the shard this Elector contends leadership for. The zero
	// value, shard 0, is also the right value for a single-node deployment
	// that isn't partitioning the worker namespace at all.
	Shard ShardID

	// RetryInterval is how often to attempt acquiring leadership.
	RetryInterval time.Duration

	// Logger is the structured logger to use. If nil, uses slog.Default().
	Logger *slog.Logger
}

// NewElector creates a leader elector contending for cfg.Shard's advisory lock.
func NewElector(cfg Config) *Elector {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Elector{
		db:         cfg.DB,
		instanceID: cfg.InstanceID,
		shard:      cfg.Shard,
		lockID:     AdvisoryLockID(cfg.Shard),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		logger: logger.With(
			slog.String("component", "leader"),
			slog.String("instance_id", cfg.InstanceID),
			slog.Uint64("shard", uint64(cfg.Shard)),
		),
		retryInterval: cfg.RetryInterval,
	}
}

// Start begins the leader election process.
func (e *Elector) Start(ctx context.Context) {
	go e.run(ctx)
}

// Stop stops the leader election process.
func (e *Elector) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

// IsLeader returns whether this instance is currently the leader.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// OnLeadershipChange registers a callback for leadership changes.
func (e *Elector) OnLeadershipChange(callback func(isLeader bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, callback)
}

// run is the main leader election loop.
func (e *Elector) run(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.retryInterval)
	defer ticker.Stop()

	// Try to acquire leadership immediately
	e.tryAcquireLeadership(ctx)

	for {
		select {
		case <-ctx.Done():
			e.releaseLeadership(ctx)
			return
		case <-e.stopCh:
			e.releaseLeadership(ctx)
			return
		case <-ticker.C:
			if !e.IsLeader() {
				e.tryAcquireLeadership(ctx)
			} else {
				// Verify we still hold the lock
				if !e.verifyLeadership(ctx) {
					e.setLeader(false)
					e.logger.Warn("Lost leadership, will retry")
				}
			}
		}
	}
}

// tryAcquireLeadership attempts to acquire the leader lock.
func (e *Elector) tryAcquireLeadership(ctx context.Context) {
	// Try to acquire advisory lock (non-blocking)
	var acquired bool
	err := e.db.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock($1)", e.lockID,
	).Scan(&acquired)

	if err != nil {
		e.logger.Error("Failed to acquire leadership", slog.Any("error", err))
		return
	}

	if acquired {
		e.setLeader(true)
		e.logger.Info("Acquired leadership")
	}
}

// verifyLeadership verifies that we still hold the leader lock.
func (e *Elector) verifyLeadership(ctx context.Context) bool {
	// Check if we hold the advisory lock
	var holding bool
	err := e.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_locks
			WHERE locktype = 'advisory'
			AND classid = ($1 >> 32)::int
			AND objid = ($1 & 4294967295)::int
			AND pid = pg_backend_pid()
		)
	`, e.lockID).Scan(&holding)

	if err != nil {
		e.logger.Error("Failed to verify leadership", slog.Any("error", err))
		return false
	}

	return holding
}

// releaseLeadership releases the leader lock if held.
func (e *Elector) releaseLeadership(ctx context.Context) {
	if !e.IsLeader() {
		return
	}

	_, err := e.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", e.lockID)
	if err != nil {
		e.logger.Error("Failed to release leadership", slog.Any("error", err))
	}

	e.setLeader(false)
	e.logger.Info("Released leadership")
}

// setLeader updates the leader status and notifies callbacks.
func (e *Elector) setLeader(isLeader bool) {
	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = isLeader
	callbacks := make([]func(bool), len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.mu.Unlock()

	// Notify callbacks if status changed
	if wasLeader != isLeader {
		for _, cb := range callbacks {
			cb(isLeader)
		}
	}
}

// Shard returns the shard this Elector contends leadership for.
func (e *Elector) Shard() ShardID {
	return e.shard
}

// LeaderStatus contains information about leadership status.
type LeaderStatus struct {
	InstanceID string    `json:"instance_id"`
	Shard      ShardID   `json:"shard"`
	IsLeader   bool      `json:"is_leader"`
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
}

// Status returns the current leadership status.
func (e *Elector) Status() LeaderStatus {
	return LeaderStatus{
		InstanceID: e.instanceID,
		Shard:      e.shard,
		IsLeader:   e.IsLeader(),
	}
}
