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

	"golang.org/x/time/rate"
)

// TokenBucketLimiter implements RateLimiter with golang.org/x/time/rate's
// token bucket. A worker's outbound HTTP/OAuth2/AWS-signed calls are
// WriteRemote/ReadRemote per the oplog's wrapped-function classification,
// so rate limiting shapes the live-execution side only - replay never
// calls through the limiter at all.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter returns a limiter allowing ratePerSecond requests
// per second on average, with bursts up to burst requests.
func NewTokenBucketLimiter(ratePerSecond float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until the bucket yields a token or ctx is done.
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
