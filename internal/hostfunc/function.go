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

// Package hostfunc wraps the host functions a running component can import:
// clock, randomness, the filesystem, and outbound HTTP. Every call a worker
// makes through one of these crosses the durability boundary - the replay
// engine records its result so a restarted worker sees the identical value
// instead of re-executing a possibly non-deterministic or now-unreachable
// side effect.
package hostfunc

import (
	"context"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// Function is one host-importable function a component can call.
type Function interface {
	// Name is the fully-qualified WIT import name, e.g. "wasi:clocks/wall-clock.now".
	Name() string

	// WrappedType classifies the call's determinism/side-effect shape, stored
	// alongside its recorded result so callers can reason about retry safety
	// without re-deriving it from the function name.
	WrappedType() oplog.WrappedFunctionType

	// Invoke performs the real call. Only reached once the replay engine has
	// switched to Live for this call; during Replaying the recorded result is
	// returned directly and Invoke is never run.
	Invoke(ctx context.Context, args value.Value) (value.Value, error)
}
