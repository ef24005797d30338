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
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

// DeriveIdempotencyKey computes the key propagated to an outbound call (a
// worker-to-worker RPC, a remote side-effect) that must itself be
// idempotent: the worker's current invocation key mixed with the oplog
// index of the call site, so two calls from the same invocation never
// collide and the same call replayed after a crash reproduces the same key.
func DeriveIdempotencyKey(invocationKey string, callSiteIndex oplog.Index) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", invocationKey, callSiteIndex)))
	return hex.EncodeToString(sum[:16])
}
