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

package hostfunc

import (
	"context"
	"time"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// WallClock wraps wasi:clocks/wall-clock.now: its reading is frozen into the
// oplog on first call and reproduced verbatim on every later replay, so a
// worker that reads the clock twice a minute apart never observes a
// different gap after a restart than it did the first time.
type WallClock struct {
	// Now returns the current wall-clock reading as (seconds, nanoseconds)
	// since the Unix epoch. Defaults to the real clock; tests substitute a
	// deterministic source.
	Now func() (uint64, uint32)
}

// NewWallClock creates a WallClock backed by the real system clock.
func NewWallClock() *WallClock {
	return &WallClock{Now: func() (uint64, uint32) {
		now := time.Now()
		return uint64(now.Unix()), uint32(now.Nanosecond())
	}}
}

func (c *WallClock) Name() string { return "wasi:clocks/wall-clock.now" }

func (c *WallClock) WrappedType() oplog.WrappedFunctionType { return oplog.ReadLocal }

func (c *WallClock) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	sec, nsec := c.Now()
	return value.RecordVal(map[string]value.Value{
		"seconds":     value.U(value.KindU64, sec),
		"nanoseconds": value.U(value.KindU32, uint64(nsec)),
	}), nil
}

// MonotonicClock wraps wasi:clocks/monotonic-clock.now: a nanosecond counter
// with no defined epoch, used for measuring elapsed time and driving
// `sleep`. Like WallClock its reading is journaled on first call.
type MonotonicClock struct {
	// Now returns the current monotonic reading in nanoseconds. Defaults to
	// a process-relative monotonic clock; tests substitute a fake one that
	// can be advanced to exercise resuming-sleep recovery.
	Now func() uint64
}

// NewMonotonicClock creates a MonotonicClock backed by the real monotonic
// clock, relative to the process start time.
func NewMonotonicClock() *MonotonicClock {
	start := time.Now()
	return &MonotonicClock{Now: func() uint64 {
		return uint64(time.Since(start).Nanoseconds())
	}}
}

func (c *MonotonicClock) Name() string { return "wasi:clocks/monotonic-clock.now" }

func (c *MonotonicClock) WrappedType() oplog.WrappedFunctionType { return oplog.ReadLocal }

func (c *MonotonicClock) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	return value.U(value.KindU64, c.Now()), nil
}
