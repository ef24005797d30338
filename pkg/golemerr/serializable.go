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

package golemerr

import "errors"

// Serializable is the JSON-safe projection of an Error, stored inside an
// ImportedFunctionInvoked oplog entry so a host-function failure replays
// byte-for-byte instead of being re-derived from live state.
type Serializable struct {
	Type     Type          `json:"type"`
	Details  string        `json:"details,omitempty"`
	Kind     InterruptKind `json:"kind,omitempty"`
	Expected string        `json:"expected,omitempty"`
	Got      string        `json:"got,omitempty"`
	ShardID  uint32        `json:"shard_id,omitempty"`
	ShardIDs []uint32      `json:"shard_ids,omitempty"`
}

// ToSerializable projects err onto its wire form. Non-*Error causes are
// flattened into TypeUnknown with their message as Details.
func ToSerializable(err error) Serializable {
	var e *Error
	if errors.As(err, &e) {
		return Serializable{
			Type:     e.Type,
			Details:  e.Details,
			Kind:     e.Kind,
			Expected: e.Expected,
			Got:      e.Got,
			ShardID:  e.ShardID,
			ShardIDs: e.ShardIDs,
		}
	}
	return Serializable{Type: TypeUnknown, Details: err.Error()}
}

// FromSerializable reconstructs an *Error from its wire form, so replay can
// reproduce the exact error a host function raised on first execution.
func FromSerializable(s Serializable) *Error {
	return &Error{
		Type:     s.Type,
		Details:  s.Details,
		Kind:     s.Kind,
		Expected: s.Expected,
		Got:      s.Got,
		ShardID:  s.ShardID,
		ShardIDs: s.ShardIDs,
	}
}
