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

package replay

import (
	"context"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

// recoverDanglingRegions repairs an oplog whose last recorded entry left an
// atomic region or remote-write bracket open: a process that crashes inside
// BeginAtomicRegion/BeginRemoteWrite never gets the chance to call
// AbortAtomicRegion/AbortRemoteWrite, so nothing appends the Jump that would
// normally mark the region deleted. Left alone, the next Engine would treat
// the worker as fully recovered and resume live from mid-region, replaying
// none of it and risking a duplicate write. This walks the recorded prefix
// once at construction time, and if it finds an unmatched Begin*, appends
// the Jump itself before the Engine ever starts, exactly as if
// AbortAtomicRegion/AbortRemoteWrite had run right before the crash.
//
// It returns the (possibly advanced, by one) last index the Engine should
// treat as the end of the recorded oplog, every Jump region the oplog
// declares - the Engine's replay cursor skips those spans - and the
// worker's recorded linear-memory footprint (initial size plus every
// GrowMemory delta outside a deleted region), which seeds the Engine's
// memory-cap accounting.
func recoverDanglingRegions(ctx context.Context, store oplog.Store, worker oplog.WorkerID, last oplog.Index) (oplog.Index, []oplog.Region, uint64, error) {
	if last == 0 {
		return last, nil, 0, nil
	}

	entries, err := store.Read(ctx, worker, 1, last)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("scanning oplog for dangling regions: %w", err)
	}

	var atomicStack, remoteStack []oplog.Index
	var deleted []oplog.Region
	for _, entry := range entries {
		switch entry.Kind {
		case oplog.KindBeginAtomicRegion:
			atomicStack = append(atomicStack, entry.Index)
		case oplog.KindEndAtomicRegion:
			atomicStack = popFrom(atomicStack, entry.Index+1)
		case oplog.KindBeginRemoteWrite:
			remoteStack = append(remoteStack, entry.Index)
		case oplog.KindEndRemoteWrite:
			remoteStack = popFrom(remoteStack, entry.Index+1)
		case oplog.KindJump:
			// A region already jumped (by a prior Abort* or a prior recovery
			// pass) resolves every Begin its span covers, whichever stack
			// opened them.
			atomicStack = popFrom(atomicStack, entry.JumpRegion.Start)
			remoteStack = popFrom(remoteStack, entry.JumpRegion.Start)
			deleted = append(deleted, entry.JumpRegion)
		}
	}

	outermost, dangling := outermostOpen(atomicStack, remoteStack)
	if dangling {
		jumpTo := last + 1
		region := oplog.Region{Start: outermost, End: jumpTo}
		if err := store.Append(ctx, worker, oplog.Entry{
			Index:      jumpTo,
			Kind:       oplog.KindJump,
			JumpRegion: region,
		}); err != nil {
			return 0, nil, 0, fmt.Errorf("appending recovery jump: %w", err)
		}
		last = jumpTo
		deleted = append(deleted, region)
	}

	return last, deleted, recordedMemory(entries, deleted), nil
}

// recordedMemory folds the worker's linear-memory footprint from its
// recorded entries, skipping deleted regions the same way replay does.
func recordedMemory(entries []oplog.Entry, deleted []oplog.Region) uint64 {
	var total uint64
	for _, e := range entries {
		inDeleted := false
		for _, r := range deleted {
			if e.Index >= r.Start && e.Index < r.End {
				inDeleted = true
				break
			}
		}
		if inDeleted {
			continue
		}
		switch e.Kind {
		case oplog.KindCreate:
			total = e.InitialMemory
		case oplog.KindGrowMemory:
			total += e.MemoryDelta
		}
	}
	return total
}

// popFrom drops every stack entry whose index is within a Jump's deleted
// span, i.e. at or above start. Stack entries are strictly increasing by
// construction, so this always removes a suffix.
func popFrom(stack []oplog.Index, start oplog.Index) []oplog.Index {
	i := len(stack)
	for i > 0 && stack[i-1] >= start {
		i--
	}
	return stack[:i]
}

// outermostOpen returns the lowest index among every bracket still open
// across both stacks. By the Begin*/End* LIFO-nesting invariant, a single
// Jump from that index covers every bracket nested inside it - atomic or
// remote-write - so recovery never needs more than one Jump no matter how
// many brackets were left dangling.
func outermostOpen(atomicStack, remoteStack []oplog.Index) (oplog.Index, bool) {
	var outermost oplog.Index
	found := false
	if len(atomicStack) > 0 {
		outermost = atomicStack[0]
		found = true
	}
	if len(remoteStack) > 0 && (!found || remoteStack[0] < outermost) {
		outermost = remoteStack[0]
		found = true
	}
	return outermost, found
}
