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

package invocation

import (
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/workerstate"
)

// WorkerResultLookup adapts a single worker's slice of the shared
// workerstate.Store into the narrow ResultLookup a Queue needs, reading
// Record.InvocationResults - the idempotency-key-to-terminal-index map
// workerstate.Reduce maintains as the oplog folds.
type WorkerResultLookup struct {
	Store  *workerstate.Store
	Worker oplog.WorkerID
}

// ResultFor reports the oplog index of key's terminal entry, if any.
func (l WorkerResultLookup) ResultFor(key string) (oplog.Index, bool) {
	idx, ok := l.Store.Get(l.Worker).InvocationResults[key]
	return idx, ok
}
