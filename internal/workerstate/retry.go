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

package workerstate

import (
	"math/rand"
	"time"
)

// NextDelay computes the Retrying -> Running backoff delay for the given
// 1-based attempt number, following `{max_attempts, min_delay, max_delay,
// multiplier, max_jitter_factor}` exponential backoff with jitter. Returns
// (0, false) once attempt exceeds MaxAttempts, signalling the retry budget
// is exhausted and the worker should transition to Failed.
func (p RetryPolicy) NextDelay(attempt uint32) (time.Duration, bool) {
	if attempt > p.MaxAttempts {
		return 0, false
	}

	base := float64(p.MinDelayMillis)
	for i := uint32(1); i < attempt; i++ {
		base *= p.Multiplier
	}

	maxMillis := float64(p.MaxDelayMillis)
	if base > maxMillis {
		base = maxMillis
	}

	if p.MaxJitterFactor > 0 {
		jitter := base * p.MaxJitterFactor * rand.Float64()
		base += jitter
	}

	return time.Duration(base) * time.Millisecond, true
}
