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
	"testing"

	"github.com/golemcloud/worker-executor/internal/hostfunc/fs"
	"github.com/golemcloud/worker-executor/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystem_WriteThenReadRoundTrip(t *testing.T) {
	f := NewFilesystem(fs.New(), func() int64 { return 42 })

	_, err := f.WriteFile().Invoke(context.Background(), value.TupleVal(
		value.Str("/greeting.txt"),
		listFromBytes([]byte("hello")),
	))
	require.NoError(t, err)

	result, err := f.ReadFile().Invoke(context.Background(), value.Str("/greeting.txt"))
	require.NoError(t, err)
	require.False(t, result.IsErr)
	data, err := bytesFromList(*result.Ok)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFilesystem_ReadMissingFileReturnsErrResult(t *testing.T) {
	f := NewFilesystem(fs.New(), func() int64 { return 1 })

	result, err := f.ReadFile().Invoke(context.Background(), value.Str("/missing.txt"))
	require.NoError(t, err)
	assert.True(t, result.IsErr)
}

func TestFilesystem_ListDirectoryReflectsWrites(t *testing.T) {
	f := NewFilesystem(fs.New(), func() int64 { return 1 })
	ctx := context.Background()

	_, err := f.CreateDirectory().Invoke(ctx, value.Str("/data"))
	require.NoError(t, err)
	_, err = f.WriteFile().Invoke(ctx, value.TupleVal(value.Str("/data/a.txt"), listFromBytes([]byte("x"))))
	require.NoError(t, err)

	result, err := f.ListDirectory().Invoke(ctx, value.Str("/data"))
	require.NoError(t, err)
	require.False(t, result.IsErr)
	require.Len(t, result.Ok.List, 1)
	assert.Equal(t, "a.txt", result.Ok.List[0].Flds["name"].String)
}

func TestFilesystem_RemoveDirectoryNotEmptyReturnsErrResult(t *testing.T) {
	f := NewFilesystem(fs.New(), func() int64 { return 1 })
	ctx := context.Background()

	_, err := f.CreateDirectory().Invoke(ctx, value.Str("/data"))
	require.NoError(t, err)
	_, err = f.WriteFile().Invoke(ctx, value.TupleVal(value.Str("/data/a.txt"), listFromBytes([]byte("x"))))
	require.NoError(t, err)

	result, err := f.RemoveDirectory().Invoke(ctx, value.Str("/data"))
	require.NoError(t, err)
	assert.True(t, result.IsErr)
}

func TestFilesystem_HardLinkSharesContent(t *testing.T) {
	f := NewFilesystem(fs.New(), func() int64 { return 1 })
	ctx := context.Background()

	_, err := f.WriteFile().Invoke(ctx, value.TupleVal(value.Str("/a.txt"), listFromBytes([]byte("shared"))))
	require.NoError(t, err)
	_, err = f.HardLink().Invoke(ctx, value.TupleVal(value.Str("/a.txt"), value.Str("/b.txt")))
	require.NoError(t, err)

	result, err := f.ReadFile().Invoke(ctx, value.Str("/b.txt"))
	require.NoError(t, err)
	require.False(t, result.IsErr)
	data, err := bytesFromList(*result.Ok)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(data))
}

func TestFilesystem_GetInfoReturnsStableMetadata(t *testing.T) {
	f := NewFilesystem(fs.New(), func() int64 { return 99 })
	ctx := context.Background()

	_, err := f.WriteFile().Invoke(ctx, value.TupleVal(value.Str("/a.txt"), listFromBytes([]byte("content"))))
	require.NoError(t, err)

	first, err := f.GetInfo().Invoke(ctx, value.Str("/a.txt"))
	require.NoError(t, err)
	second, err := f.GetInfo().Invoke(ctx, value.Str("/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Ok.Flds["hash"].String)
}
