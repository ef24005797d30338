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

package oplog

import (
	"context"
	"fmt"
)

// Committer is an optional tier capability: a durability fence. Once Commit
// returns, every Append issued before it is recoverable after process
// death. Tiers that persist synchronously (memory, SQLite in its default
// journal mode) need not implement it; Handle.Commit treats absence as an
// immediate fence.
type Committer interface {
	Commit(ctx context.Context, worker WorkerID) error
}

// PrefixDropper is an optional tier capability: dropping a prefix that
// Archive has marked archived from the hot tier.
type PrefixDropper interface {
	DropPrefixUpTo(ctx context.Context, worker WorkerID, upTo Index) error
}

// Handle is one worker's view of its oplog: the per-worker surface the
// replay engine and host functions operate through, binding a shared Store
// to a WorkerID and carrying the inline-payload threshold. A Handle has a
// single writer (the worker's executor goroutine) by construction.
type Handle struct {
	store           Store
	worker          WorkerID
	inlineThreshold int
}

// DefaultInlineThreshold is the payload size above which bytes move to the
// blob-store tier instead of riding inline in the entry.
const DefaultInlineThreshold = 16 * 1024

// NewHandle binds store to worker. A threshold of 0 selects
// DefaultInlineThreshold.
func NewHandle(store Store, worker WorkerID, threshold int) *Handle {
	if threshold <= 0 {
		threshold = DefaultInlineThreshold
	}
	return &Handle{store: store, worker: worker, inlineThreshold: threshold}
}

// Worker returns the worker this handle is bound to.
func (h *Handle) Worker() WorkerID {
	return h.worker
}

// Append writes entry at the next index and returns that index.
func (h *Handle) Append(ctx context.Context, entry Entry) (Index, error) {
	last, err := h.store.LastIndex(ctx, h.worker)
	if err != nil {
		return 0, err
	}
	entry.Index = last + 1
	if err := h.store.Append(ctx, h.worker, entry); err != nil {
		return 0, err
	}
	return entry.Index, nil
}

// Read returns entries in [from, to] inclusive.
func (h *Handle) Read(ctx context.Context, from, to Index) ([]Entry, error) {
	return h.store.Read(ctx, h.worker, from, to)
}

// CurrentIndex returns the highest index written, or 0 for an empty oplog.
func (h *Handle) CurrentIndex(ctx context.Context) (Index, error) {
	return h.store.LastIndex(ctx, h.worker)
}

// Commit fences durability: on return, all preceding Appends survive
// process death. For tiers without a Committer capability every Append is
// already synchronous and Commit returns immediately.
func (h *Handle) Commit(ctx context.Context) error {
	if c, ok := h.store.(Committer); ok {
		return c.Commit(ctx, h.worker)
	}
	return nil
}

// DropPrefixUpTo removes entries [1, upTo] from the hot tier once they are
// marked archived. Tiers without the capability keep their prefix; the
// archive watermark alone still bounds what readers may assume is hot.
func (h *Handle) DropPrefixUpTo(ctx context.Context, upTo Index) error {
	if d, ok := h.store.(PrefixDropper); ok {
		return d.DropPrefixUpTo(ctx, h.worker, upTo)
	}
	return nil
}

// AddPayload wraps data as an entry payload, externalizing it to the tier's
// payload store when it exceeds the inline threshold.
func (h *Handle) AddPayload(ctx context.Context, data []byte) (*Payload, error) {
	p := NewInlinePayload(data, h.inlineThreshold)
	if p.IsInline() {
		return p, nil
	}
	if err := h.store.PutPayload(ctx, h.worker, p.PayloadID, data); err != nil {
		return nil, fmt.Errorf("externalizing payload %s: %w", p.PayloadID, err)
	}
	return p, nil
}

// ReadPayload returns a payload's bytes, fetching and hash-verifying
// externalized payloads from the tier's payload store.
func (h *Handle) ReadPayload(ctx context.Context, p *Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	if p.IsInline() {
		return p.Inline, nil
	}
	data, err := h.store.GetPayload(ctx, h.worker, p.PayloadID)
	if err != nil {
		return nil, err
	}
	if sum := md5sum(data); sum != p.MD5Hash {
		return nil, fmt.Errorf("payload %s hash mismatch: stored %s, recorded %s", p.PayloadID, sum, p.MD5Hash)
	}
	return data, nil
}
