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

	"github.com/golemcloud/worker-executor/internal/hostfunc/fs"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// Filesystem wraps wasi:filesystem over a worker's sandboxed fs.Sandbox.
// Mutations are WriteLocal - on replay the engine skips re-executing them
// and trusts that the sandbox (rebuilt from the recorded mutations, in
// order, by RebuildSandbox before replay starts) ends up in the same state; reads of content are
// ReadLocal; get-info/hash are also journaled so replay observes the exact
// metadata recorded the first time rather than whatever the sandbox
// currently holds.
type Filesystem struct {
	NowMs func() int64
	Sandbox *fs.Sandbox
}

// NewFilesystem creates a Filesystem host-function set over sandbox.
func NewFilesystem(sandbox *fs.Sandbox, nowMs func() int64) *Filesystem {
	return &Filesystem{Sandbox: sandbox, NowMs: nowMs}
}

// WriteFile builds the write-file host function: wasi:filesystem/types.write-via-stream,
// taking a (path, data) tuple, data being a list<u8>, and returning
// result<_, string>.
func (f *Filesystem) WriteFile() Function { return fsWriteFile{f} }

// ReadFile builds the read-file host function, returning result<list<u8>, string>.
func (f *Filesystem) ReadFile() Function { return fsReadFile{f} }

// CreateDirectory builds the create-directory host function.
func (f *Filesystem) CreateDirectory() Function { return fsCreateDirectory{f} }

// RemoveFile builds the remove-file host function.
func (f *Filesystem) RemoveFile() Function { return fsRemoveFile{f} }

// RemoveDirectory builds the remove-directory host function.
func (f *Filesystem) RemoveDirectory() Function { return fsRemoveDirectory{f} }

// Rename builds the rename host function.
func (f *Filesystem) Rename() Function { return fsRename{f} }

// HardLink builds the create-link (hard link) host function.
func (f *Filesystem) HardLink() Function { return fsHardLink{f} }

// Symlink builds the symlink host function.
func (f *Filesystem) Symlink() Function { return fsSymlink{f} }

// ListDirectory builds the list-directory host function.
func (f *Filesystem) ListDirectory() Function { return fsListDirectory{f} }

// GetInfo builds the get-info/get-file-info/metadata-hash host function.
func (f *Filesystem) GetInfo() Function { return fsGetInfo{f} }

func pathAndString(args value.Value) (string, string, error) {
	if args.Kind != value.KindTuple || len(args.List) != 2 {
		return "", "", golemerr.ParamTypeMismatch("expected a (path, string) tuple")
	}
	a, b := args.List[0], args.List[1]
	if a.Kind != value.KindString || b.Kind != value.KindString {
		return "", "", golemerr.ParamTypeMismatch("expected (string, string)")
	}
	return a.String, b.String, nil
}

func bytesFromList(v value.Value) ([]byte, error) {
	if v.Kind != value.KindList {
		return nil, golemerr.ParamTypeMismatch("expected a list<u8>")
	}
	out := make([]byte, len(v.List))
	for i, item := range v.List {
		out[i] = byte(item.U64)
	}
	return out, nil
}

func listFromBytes(data []byte) value.Value {
	items := make([]value.Value, len(data))
	for i, b := range data {
		items[i] = value.U(value.KindU8, uint64(b))
	}
	return value.ListVal(items...)
}

func fsResult(ok *value.Value, err error) (value.Value, error) {
	if err != nil {
		msg := value.Str(err.Error())
		return value.ResultErr(&msg), nil
	}
	return value.ResultOk(ok), nil
}

type fsWriteFile struct{ f *Filesystem }

func (fsWriteFile) Name() string                              { return "wasi:filesystem/types.write-via-stream" }
func (fsWriteFile) WrappedType() oplog.WrappedFunctionType     { return oplog.WriteLocal }
func (w fsWriteFile) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindTuple || len(args.List) != 2 {
		return value.Value{}, golemerr.ParamTypeMismatch("expected (path, data)")
	}
	path := args.List[0].String
	data, err := bytesFromList(args.List[1])
	if err != nil {
		return value.Value{}, err
	}
	err = w.f.Sandbox.WriteFile(path, data, w.f.NowMs())
	return fsResult(nil, err)
}

type fsReadFile struct{ f *Filesystem }

func (fsReadFile) Name() string                          { return "wasi:filesystem/types.read-via-stream" }
func (fsReadFile) WrappedType() oplog.WrappedFunctionType { return oplog.ReadLocal }
func (r fsReadFile) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindString {
		return value.Value{}, golemerr.ParamTypeMismatch("expected a path string")
	}
	data, err := r.f.Sandbox.ReadFile(args.String)
	if err != nil {
		return fsResult(nil, err)
	}
	list := listFromBytes(data)
	return fsResult(&list, nil)
}

type fsCreateDirectory struct{ f *Filesystem }

func (fsCreateDirectory) Name() string                          { return "wasi:filesystem/types.create-directory-at" }
func (fsCreateDirectory) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }
func (c fsCreateDirectory) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindString {
		return value.Value{}, golemerr.ParamTypeMismatch("expected a path string")
	}
	err := c.f.Sandbox.CreateDirectory(args.String, c.f.NowMs())
	return fsResult(nil, err)
}

type fsRemoveFile struct{ f *Filesystem }

func (fsRemoveFile) Name() string                          { return "wasi:filesystem/types.unlink-file-at" }
func (fsRemoveFile) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }
func (r fsRemoveFile) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindString {
		return value.Value{}, golemerr.ParamTypeMismatch("expected a path string")
	}
	return fsResult(nil, r.f.Sandbox.RemoveFile(args.String))
}

type fsRemoveDirectory struct{ f *Filesystem }

func (fsRemoveDirectory) Name() string                          { return "wasi:filesystem/types.remove-directory-at" }
func (fsRemoveDirectory) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }
func (r fsRemoveDirectory) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindString {
		return value.Value{}, golemerr.ParamTypeMismatch("expected a path string")
	}
	return fsResult(nil, r.f.Sandbox.RemoveDirectory(args.String))
}

type fsRename struct{ f *Filesystem }

func (fsRename) Name() string                          { return "wasi:filesystem/types.rename-at" }
func (fsRename) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }
func (r fsRename) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	from, to, err := pathAndString(args)
	if err != nil {
		return value.Value{}, err
	}
	return fsResult(nil, r.f.Sandbox.Rename(from, to))
}

type fsHardLink struct{ f *Filesystem }

func (fsHardLink) Name() string                          { return "wasi:filesystem/types.link-at" }
func (fsHardLink) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }
func (h fsHardLink) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	from, to, err := pathAndString(args)
	if err != nil {
		return value.Value{}, err
	}
	return fsResult(nil, h.f.Sandbox.HardLink(from, to))
}

type fsSymlink struct{ f *Filesystem }

func (fsSymlink) Name() string                          { return "wasi:filesystem/types.symlink-at" }
func (fsSymlink) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }
func (s fsSymlink) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	target, link, err := pathAndString(args)
	if err != nil {
		return value.Value{}, err
	}
	return fsResult(nil, s.f.Sandbox.Symlink(target, link))
}

type fsListDirectory struct{ f *Filesystem }

func (fsListDirectory) Name() string                          { return "wasi:filesystem/types.read-directory" }
func (fsListDirectory) WrappedType() oplog.WrappedFunctionType { return oplog.ReadLocal }
func (l fsListDirectory) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindString {
		return value.Value{}, golemerr.ParamTypeMismatch("expected a path string")
	}
	entries, err := l.f.Sandbox.ListDirectory(args.String)
	if err != nil {
		return fsResult(nil, err)
	}
	items := make([]value.Value, len(entries))
	for i, e := range entries {
		items[i] = value.RecordVal(map[string]value.Value{
			"name":   value.Str(e.Name),
			"is-dir": value.Bool(e.IsDir),
			"size":   value.U(value.KindU64, e.Size),
		})
	}
	list := value.ListVal(items...)
	return fsResult(&list, nil)
}

type fsGetInfo struct{ f *Filesystem }

func (fsGetInfo) Name() string                          { return "wasi:filesystem/types.stat-at" }
func (fsGetInfo) WrappedType() oplog.WrappedFunctionType { return oplog.ReadLocal }
func (g fsGetInfo) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindString {
		return value.Value{}, golemerr.ParamTypeMismatch("expected a path string")
	}
	info, err := g.f.Sandbox.GetInfo(args.String)
	if err != nil {
		return fsResult(nil, err)
	}
	rec := value.RecordVal(map[string]value.Value{
		"is-dir":      value.Bool(info.IsDir),
		"size":        value.U(value.KindU64, info.Size),
		"created-at":  value.U(value.KindU64, uint64(info.CreatedAt)),
		"modified-at": value.U(value.KindU64, uint64(info.ModifiedAt)),
		"hash":        value.Str(info.Hash),
	})
	return fsResult(&rec, nil)
}
