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
	"crypto/md5"
	"encoding/hex"
)

// Payload is either inline bytes or a reference into the external blob
// store, keyed by content hash for dedup and integrity checking.
type Payload struct {
	Inline    []byte
	PayloadID string
	MD5Hash   string
}

// IsInline reports whether the payload's bytes are carried directly in the
// oplog entry rather than referencing the blob store.
func (p *Payload) IsInline() bool {
	return p != nil && p.PayloadID == ""
}

// NewInlinePayload wraps data as an inline payload, promoting it to an
// external reference when it exceeds threshold bytes. The caller is
// responsible for actually writing externalized bytes to the blob store
// under the returned PayloadID/MD5Hash via PayloadStore.PutPayload.
func NewInlinePayload(data []byte, threshold int) *Payload {
	hash := md5sum(data)
	if len(data) <= threshold {
		return &Payload{Inline: data, MD5Hash: hash}
	}
	return &Payload{PayloadID: hash, MD5Hash: hash}
}

func md5sum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
