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

package transport

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig bounds in-flight delivery retries. These retries happen
// strictly BEFORE anything is journaled - they are invisible to the oplog
// and carry the same idempotency-key header on every attempt, which is
// what makes them safe. Once an outcome is journaled, the replay engine
// guarantees the request is never re-issued; this config has no say in
// that.
type RetryConfig struct {
	// MaxAttempts is the total number of delivery attempts, including the
	// first. Minimum 1.
	MaxAttempts int

	// InitialBackoff and MaxBackoff bound the exponential delay between
	// attempts; BackoffFactor is the per-attempt multiplier.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// RetryableStatuses lists the HTTP status codes worth re-attempting;
	// every other status is a final answer from the remote.
	RetryableStatuses []int
}

// DefaultRetryConfig matches the usual transient-failure set: request
// timeout, throttling, and server-side errors.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

func (c *RetryConfig) retryableStatus(status int) bool {
	for _, s := range c.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// deliver runs fn up to c.MaxAttempts times. A nil-error response with a
// retryable status is re-attempted (honoring Retry-After); the last
// response is returned as-is when attempts run out, since a 503 the remote
// insisted on is still the journaled outcome. A *TransportError is
// re-attempted only while it reports Retryable.
func deliver(ctx context.Context, c *RetryConfig, fn func(ctx context.Context) (*Response, error)) (*Response, error) {
	if c == nil {
		c = DefaultRetryConfig()
	}

	var resp *Response
	var err error
	for attempt := 1; ; attempt++ {
		resp, err = fn(ctx)

		retryAfter, retry := shouldRetry(c, resp, err)
		if !retry || attempt >= c.MaxAttempts {
			return resp, err
		}

		select {
		case <-time.After(backoffDelay(c, attempt, retryAfter)):
		case <-ctx.Done():
			return nil, &TransportError{
				Type:    ErrorTypeCancelled,
				Message: "request cancelled during retry backoff",
				Cause:   ctx.Err(),
			}
		}
	}
}

func shouldRetry(c *RetryConfig, resp *Response, err error) (time.Duration, bool) {
	if err != nil {
		terr, ok := err.(*TransportError)
		if !ok || !terr.Retryable {
			return 0, false
		}
		return terr.RetryAfter, true
	}
	if resp == nil || !c.retryableStatus(resp.StatusCode) {
		return 0, false
	}
	return retryAfterHeader(resp.Headers), true
}

// backoffDelay is min(InitialBackoff * BackoffFactor^(attempt-1),
// MaxBackoff), raised to a server-requested Retry-After when larger (still
// capped), plus up to 100ms of jitter.
func backoffDelay(c *RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	delay := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= c.BackoffFactor
	}
	if delay > float64(c.MaxBackoff) {
		delay = float64(c.MaxBackoff)
	}

	d := time.Duration(delay)
	if retryAfter > d {
		d = retryAfter
	}
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d + time.Duration(rand.Int63n(101))*time.Millisecond
}

// retryAfterHeader parses a Retry-After response header, accepting both
// delay-seconds and HTTP-date forms. Zero when absent or malformed.
func retryAfterHeader(headers map[string][]string) time.Duration {
	values := headers["Retry-After"]
	if len(values) == 0 {
		return 0
	}
	raw := values[0]

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if until := time.Until(at); until > 0 {
			return until
		}
	}
	return 0
}
