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
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs a due Action. Errors are logged; the entry is still
// deleted, since a scheduled action that failed to apply has nowhere else
// to go and re-running it forever would wedge the wheel - callers whose
// actions must never be silently dropped are expected to make Dispatch
// itself retry-safe (CompletePromise and ArchiveOplog both are: the former
// is idempotent per promise.Store.Complete, the latter is safe to re-run
// against an already-archived range).
type Dispatcher func(ctx context.Context, action Action) error

// LeaderGate reports whether this node is currently allowed to fire
// scheduled actions. In a multi-node fleet, only the elected leader ticks
// the wheel, so a late-firing duplicate never executes twice; satisfied by
// *leader.Elector without this package importing it directly.
type LeaderGate interface {
	IsLeader() bool
}

// alwaysLeader is the default gate for single-node deployments, where every
// node is trivially "the leader".
type alwaysLeader struct{}

func (alwaysLeader) IsLeader() bool { return true }

// Scheduler is the node's timer wheel: a ticker loop that polls Store for
// due entries and hands each to Dispatcher.
type Scheduler struct {
	store      Store
	dispatch   Dispatcher
	gate       LeaderGate
	tickPeriod time.Duration
	nowMs      func() int64
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config configures a Scheduler.
type Config struct {
	// TickPeriod is how often the wheel polls Store for due entries.
	// Defaults to one second.
	TickPeriod time.Duration

	// Gate restricts firing to the elected leader; nil means single-node
	// (every tick fires due entries unconditionally).
	Gate LeaderGate

	// NowMs returns the current time in milliseconds since epoch. Tests
	// inject a deterministic clock; production uses wall-clock time.
	NowMs func() int64

	Logger *slog.Logger
}

// New creates a Scheduler backed by store, invoking dispatch for each due
// entry.
func New(store Store, dispatch Dispatcher, cfg Config) *Scheduler {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = time.Second
	}
	if cfg.Gate == nil {
		cfg.Gate = alwaysLeader{}
	}
	if cfg.NowMs == nil {
		cfg.NowMs = func() int64 { return time.Now().UnixMilli() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		store:      store,
		dispatch:   dispatch,
		gate:       cfg.Gate,
		tickPeriod: cfg.TickPeriod,
		nowMs:      cfg.NowMs,
		logger:     logger.With(slog.String("component", "scheduler")),
	}
}

// Schedule persists a new entry, to be dispatched once its deadline passes.
func (s *Scheduler) Schedule(ctx context.Context, e Entry) error {
	return s.store.Put(ctx, e)
}

// Start begins the ticker loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop halts the ticker loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.gate.IsLeader() {
		return
	}

	due, err := s.store.Due(ctx, s.nowMs())
	if err != nil {
		s.logger.Error("failed to poll due scheduled entries", slog.Any("error", err))
		return
	}

	for _, e := range due {
		entry := e
		go s.fire(ctx, entry)
	}
}

func (s *Scheduler) fire(ctx context.Context, e Entry) {
	if err := s.dispatch(ctx, e.Action); err != nil {
		s.logger.Error("scheduled action failed",
			slog.String("kind", string(e.Action.Kind)),
			slog.Any("error", err))
	}
	if err := s.store.Delete(ctx, e.ID); err != nil {
		s.logger.Error("failed to delete dispatched scheduled entry", slog.Any("error", err))
	}
}
