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

package grpc

// WorkerRef names one worker, the same (component_id, worker_name) pair
// oplog.WorkerID carries, projected onto the wire without importing the
// oplog package's internal Index type into the wire messages.
type WorkerRef struct {
	ComponentID string
	WorkerName  string
}

// CreateWorkerRequest asks the node to create worker, recording a Create
// oplog entry.
type CreateWorkerRequest struct {
	Worker           WorkerRef
	ComponentVersion uint64
	Args             []string
	Env              map[string]string
}

// CreateWorkerResponse is empty on success; errors travel as a gRPC status.
type CreateWorkerResponse struct{}

// GetWorkerRequest asks for a worker's current status.
type GetWorkerRequest struct {
	Worker WorkerRef
}

// GetWorkerResponse reports a worker's WorkerStatusRecord, projected for the
// wire: Status as its string name, OplogIdx as the highest index folded in.
type GetWorkerResponse struct {
	Status           string
	ComponentVersion uint64
	OplogIdx         uint64
}

// DeleteWorkerRequest asks the node to delete worker's state entirely.
type DeleteWorkerRequest struct {
	Worker WorkerRef
}

// DeleteWorkerResponse is empty on success.
type DeleteWorkerResponse struct{}

// InvokeRequest names the export to call and its encoded argument list.
type InvokeRequest struct {
	Worker         WorkerRef
	Function       string
	ArgsJSON       []byte
	IdempotencyKey string
}

// InvokeResponse is returned immediately by fire-and-forget Invoke; the
// result is retrieved later via a subsequent InvokeAndAwait with the same
// IdempotencyKey.
type InvokeResponse struct{}

// InvokeAndAwaitResponse carries the export's encoded return value.
type InvokeAndAwaitResponse struct {
	ResultJSON []byte
}

// InterruptRequest asks the node to deliver an out-of-band interrupt to a
// running worker at its next host-function boundary.
type InterruptRequest struct {
	Worker        WorkerRef
	RecoverImmediately bool
}

// InterruptResponse is empty on success.
type InterruptResponse struct{}

// ResumeRequest asks the node to resume a Suspended or Interrupted worker.
type ResumeRequest struct {
	Worker WorkerRef
}

// ResumeResponse is empty on success.
type ResumeResponse struct{}

// ConnectRequest opens a log/stdout/stderr stream for worker.
type ConnectRequest struct {
	Worker WorkerRef
}

// ConnectFrame is one frame of a Connect stream: exactly one of Stdout,
// Stderr, or Log is set.
type ConnectFrame struct {
	Stdout []byte
	Stderr []byte
	Log    *LogLine
}

// LogLine is one structured log record emitted by a worker.
type LogLine struct {
	Level   string
	Message string
}

// ListDirectoryRequest lists a worker's sandboxed filesystem at Path.
type ListDirectoryRequest struct {
	Worker WorkerRef
	Path   string
}

// DirEntry is one entry in a ListDirectoryResponse.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  uint64
}

// ListDirectoryResponse lists Path's immediate children.
type ListDirectoryResponse struct {
	Entries []DirEntry
}

// GetFileContentsRequest reads one file from a worker's sandboxed
// filesystem.
type GetFileContentsRequest struct {
	Worker WorkerRef
	Path   string
}

// GetFileContentsResponse carries the requested file's bytes.
type GetFileContentsResponse struct {
	Contents []byte
}

// GetOplogRequest reads a worker's oplog in [FromIndex, FromIndex+Count).
type GetOplogRequest struct {
	Worker     WorkerRef
	FromIndex  uint64
	Count      uint64
}

// OplogEntrySummary is a wire-safe projection of one oplog.Entry: enough
// for an operator or debugging tool to inspect without exposing the
// in-process Entry type's full field set.
type OplogEntrySummary struct {
	Index        uint64
	Kind         string
	FunctionName string
	Timestamp    int64
}

// GetOplogResponse returns the requested oplog slice.
type GetOplogResponse struct {
	Entries []OplogEntrySummary
}
