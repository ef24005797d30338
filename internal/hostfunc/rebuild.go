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
	"encoding/json"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// RebuildSandbox reconstructs a worker's sandboxed filesystem from its
// oplog after a restart: the sandbox lives in process memory, so recovery
// re-applies every journaled WriteLocal filesystem mutation - in oplog
// order, skipping Jump-deleted regions and calls that failed - to a fresh
// sandbox before replay begins. Read calls are not re-applied; their
// recorded results flow back through Dispatch as usual.
func RebuildSandbox(ctx context.Context, store oplog.Store, worker oplog.WorkerID, f *Filesystem) error {
	last, err := store.LastIndex(ctx, worker)
	if err != nil {
		return fmt.Errorf("reading oplog length: %w", err)
	}
	if last == 0 {
		return nil
	}

	entries, err := store.Read(ctx, worker, 1, last)
	if err != nil {
		return fmt.Errorf("reading oplog: %w", err)
	}

	var deleted []oplog.Region
	for _, e := range entries {
		if e.Kind == oplog.KindJump {
			deleted = append(deleted, e.JumpRegion)
		}
	}
	inDeleted := func(idx oplog.Index) bool {
		for _, r := range deleted {
			if idx >= r.Start && idx < r.End {
				return true
			}
		}
		return false
	}

	mutators := map[string]Function{
		f.WriteFile().Name():       f.WriteFile(),
		f.CreateDirectory().Name(): f.CreateDirectory(),
		f.RemoveFile().Name():      f.RemoveFile(),
		f.RemoveDirectory().Name(): f.RemoveDirectory(),
		f.Rename().Name():          f.Rename(),
		f.HardLink().Name():        f.HardLink(),
		f.Symlink().Name():         f.Symlink(),
	}

	for _, e := range entries {
		if e.Kind != oplog.KindImportedFunctionInvoked || inDeleted(e.Index) {
			continue
		}
		fn, isMutator := mutators[e.FunctionName]
		if !isMutator || e.HostError != nil || e.Payload == nil {
			continue
		}

		var call journaledCall
		if err := json.Unmarshal(e.Payload.Inline, &call); err != nil {
			return fmt.Errorf("decoding journaled call at index %d: %w", e.Index, err)
		}
		if call.Args == nil {
			continue
		}
		args, err := value.DecodeJSON(call.Args)
		if err != nil {
			return fmt.Errorf("decoding args at index %d: %w", e.Index, err)
		}
		if _, err := fn.Invoke(ctx, args); err != nil {
			return fmt.Errorf("re-applying %s at index %d: %w", e.FunctionName, e.Index, err)
		}
	}
	return nil
}
