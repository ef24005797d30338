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

// BeginAtomicRegion marks the start of a batch of remote writes that must be
// retried as a unit: if the worker traps before the matching
// EndAtomicRegion, replay must skip every entry in the region rather than
// re-issue a partial batch. It returns the region's starting index, which
// the caller threads through to EndAtomicRegion or AbortAtomicRegion.
func (e *Engine) BeginAtomicRegion(ctx context.Context) (oplog.Index, error) {
	idx, err := e.Append(ctx, oplog.Entry{Kind: oplog.KindBeginAtomicRegion})
	if err != nil {
		return 0, err
	}
	e.atomicStack = append(e.atomicStack, idx)
	return idx, nil
}

// EndAtomicRegion closes the region started at beginIdx, committing it.
func (e *Engine) EndAtomicRegion(ctx context.Context, beginIdx oplog.Index) error {
	if err := e.popAtomic(beginIdx); err != nil {
		return err
	}
	_, err := e.Append(ctx, oplog.Entry{Kind: oplog.KindEndAtomicRegion})
	return err
}

// AbortAtomicRegion is called when the worker traps inside an atomic region
// before it completes. It appends a Jump entry spanning [beginIdx, current]
// so that on the next replay the entire region - including whatever partial
// writes it already recorded - is skipped and the region is re-executed from
// scratch rather than resumed mid-batch.
func (e *Engine) AbortAtomicRegion(ctx context.Context, beginIdx oplog.Index) error {
	if err := e.popAtomic(beginIdx); err != nil {
		return err
	}
	jumpTo := e.nextIndex
	region := oplog.Region{Start: beginIdx, End: jumpTo}
	if _, err := e.Append(ctx, oplog.Entry{Kind: oplog.KindJump, JumpRegion: region}); err != nil {
		return err
	}
	e.deleted = append(e.deleted, region)
	return nil
}

func (e *Engine) popAtomic(beginIdx oplog.Index) error {
	n := len(e.atomicStack)
	if n == 0 || e.atomicStack[n-1] != beginIdx {
		return fmt.Errorf("atomic region %d is not the innermost open region", beginIdx)
	}
	e.atomicStack = e.atomicStack[:n-1]
	return nil
}

// InAtomicRegion reports whether an atomic region is currently open.
func (e *Engine) InAtomicRegion() bool {
	return len(e.atomicStack) > 0
}
