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

package oplog_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Entry-format compatibility: testdata holds oplog entries encoded by the
// first release. They must keep decoding - an undecodable old journal is a
// breaking change - and each must equal a freshly-constructed entry with
// the same semantics. New Entry fields may only ever be additive/optional.
func TestGoldenEntries_DecodeUnchanged(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "golden_entries_v1.json"))
	require.NoError(t, err)

	var decoded []oplog.Entry
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 8)

	want := []oplog.Entry{
		{
			Index: 1, Kind: oplog.KindCreate, Timestamp: 1700000000000,
			ComponentVersion: 2,
			Args:             []string{"--fast"},
			Env:              map[string]string{"REGION": "eu-west-1"},
			ParentWorkerID:   "c0/parent",
			InitialMemory:    1048576,
		},
		{
			Index: 2, Kind: oplog.KindExportedFunctionInvoked, Timestamp: 1700000000100,
			IdempotencyKey: "req-1",
			Request: &oplog.Payload{
				Inline:  []byte(`{"qty":3}`),
				MD5Hash: "0d599f0ec05c3bda8c3b8a68c32a1b47",
			},
		},
		{
			Index: 3, Kind: oplog.KindImportedFunctionInvoked, Timestamp: 1700000000200,
			WrappedFunctionType: oplog.ReadLocal,
			FunctionName:        "wasi:clocks/wall-clock.now",
			Payload:             &oplog.Payload{Inline: []byte("1700000000")},
		},
		{
			Index: 4, Kind: oplog.KindImportedFunctionInvoked, Timestamp: 1700000000300,
			WrappedFunctionType: oplog.WriteRemote,
			FunctionName:        "wasi:http/outgoing-handler.handle",
			HostError:           &golemerr.Serializable{Type: golemerr.TypeUnknown, Details: "connection timeout"},
		},
		{
			Index: 5, Kind: oplog.KindChangeRetryPolicy, Timestamp: 1700000000400,
			RetryPolicy: &oplog.RetryPolicyOverride{
				MaxAttempts: 3, MinDelayMillis: 500, MaxDelayMillis: 5000,
				Multiplier: 2.0, MaxJitterFactor: 0.2,
			},
		},
		{
			Index: 6, Kind: oplog.KindJump, Timestamp: 1700000000500,
			JumpRegion: oplog.Region{Start: 3, End: 5},
		},
		{
			Index: 7, Kind: oplog.KindExportedFunctionCompleted, Timestamp: 1700000000600,
			Response: &oplog.Payload{
				PayloadID: "5d41402abc4b2a76b9719d911017c592",
				MD5Hash:   "5d41402abc4b2a76b9719d911017c592",
			},
			FuelConsumed: 4200,
		},
		{
			Index: 8, Kind: oplog.KindError, Timestamp: 1700000000700,
			WorkerError: &golemerr.Serializable{Type: golemerr.TypeRuntime, Details: "unreachable executed"},
		},
	}

	for i, expected := range want {
		assert.Equal(t, expected, decoded[i], "entry %d (%s)", i+1, expected.Kind)
	}

	// Re-encoding and decoding again must be lossless under the current
	// binary, so additions to Entry never shadow a golden field.
	reencoded, err := json.Marshal(decoded)
	require.NoError(t, err)
	var again []oplog.Entry
	require.NoError(t, json.Unmarshal(reencoded, &again))
	assert.Equal(t, decoded, again)
}
