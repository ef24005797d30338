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
	"crypto/rand"
	"encoding/binary"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// Random wraps wasi:random/random: every byte or u64 it hands out is frozen
// into the oplog the first time it is drawn, so a worker that reseeds a
// PRNG from it produces the identical sequence after a restart.
type Random struct {
	// Read fills buf with cryptographically random bytes. Defaults to
	// crypto/rand; tests substitute a deterministic source.
	Read func(buf []byte) error
}

// NewRandom creates a Random backed by crypto/rand.
func NewRandom() *Random {
	return &Random{Read: func(buf []byte) error {
		_, err := rand.Read(buf)
		return err
	}}
}

// GetRandomBytesFunction wraps wasi:random/random.get-random-bytes.
type GetRandomBytesFunction struct{ r *Random }

// NewGetRandomBytes creates the get-random-bytes host function over r.
func NewGetRandomBytes(r *Random) *GetRandomBytesFunction { return &GetRandomBytesFunction{r: r} }

func (f *GetRandomBytesFunction) Name() string { return "wasi:random/random.get-random-bytes" }

func (f *GetRandomBytesFunction) WrappedType() oplog.WrappedFunctionType { return oplog.ReadLocal }

func (f *GetRandomBytesFunction) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindU64 {
		return value.Value{}, golemerr.ParamTypeMismatch("get-random-bytes expects a u64 length")
	}
	buf := make([]byte, args.U64)
	if err := f.r.Read(buf); err != nil {
		return value.Value{}, golemerr.Unknown(err)
	}
	items := make([]value.Value, len(buf))
	for i, b := range buf {
		items[i] = value.U(value.KindU8, uint64(b))
	}
	return value.ListVal(items...), nil
}

// GetRandomU64Function wraps wasi:random/random.get-random-u64.
type GetRandomU64Function struct{ r *Random }

// NewGetRandomU64 creates the get-random-u64 host function over r.
func NewGetRandomU64(r *Random) *GetRandomU64Function { return &GetRandomU64Function{r: r} }

func (f *GetRandomU64Function) Name() string { return "wasi:random/random.get-random-u64" }

func (f *GetRandomU64Function) WrappedType() oplog.WrappedFunctionType { return oplog.ReadLocal }

func (f *GetRandomU64Function) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	var buf [8]byte
	if err := f.r.Read(buf[:]); err != nil {
		return value.Value{}, golemerr.Unknown(err)
	}
	return value.U(value.KindU64, binary.LittleEndian.Uint64(buf[:])), nil
}
