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

// BeginRemoteWrite marks the start of a WriteRemoteBatched bracket: a run of
// outbound calls to the same remote endpoint that must be replayed as a
// single unit, the same unmatched-bracket-at-crash handling as an atomic
// region but keyed to its own stack since a remote-write bracket and an
// atomic region may nest independently. It returns the bracket's starting
// index, threaded through to EndRemoteWrite or AbortRemoteWrite.
func (e *Engine) BeginRemoteWrite(ctx context.Context) (oplog.Index, error) {
	idx, err := e.Append(ctx, oplog.Entry{Kind: oplog.KindBeginRemoteWrite})
	if err != nil {
		return 0, err
	}
	e.remoteWriteStack = append(e.remoteWriteStack, idx)
	return idx, nil
}

// EndRemoteWrite closes the bracket started at beginIdx, committing it.
func (e *Engine) EndRemoteWrite(ctx context.Context, beginIdx oplog.Index) error {
	if err := e.popRemoteWrite(beginIdx); err != nil {
		return err
	}
	_, err := e.Append(ctx, oplog.Entry{Kind: oplog.KindEndRemoteWrite})
	return err
}

// AbortRemoteWrite is called when the worker traps inside a remote-write
// bracket before it completes. As with AbortAtomicRegion, it appends a Jump
// spanning [beginIdx, current] so the next replay skips the whole batch -
// including any writes it already partially recorded - rather than resuming
// mid-batch and risking a duplicate remote write.
func (e *Engine) AbortRemoteWrite(ctx context.Context, beginIdx oplog.Index) error {
	if err := e.popRemoteWrite(beginIdx); err != nil {
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

func (e *Engine) popRemoteWrite(beginIdx oplog.Index) error {
	n := len(e.remoteWriteStack)
	if n == 0 || e.remoteWriteStack[n-1] != beginIdx {
		return fmt.Errorf("remote-write bracket %d is not the innermost open bracket", beginIdx)
	}
	e.remoteWriteStack = e.remoteWriteStack[:n-1]
	return nil
}

// InRemoteWrite reports whether a remote-write bracket is currently open.
func (e *Engine) InRemoteWrite() bool {
	return len(e.remoteWriteStack) > 0
}
