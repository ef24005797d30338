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

// Package grpc is the worker-executor node's control-plane surface: the
// gateway and CLI create/inspect/invoke workers through it. It hand-writes
// a grpc.ServiceDesc instead of consuming protoc-generated stubs, pairing
// google.golang.org/grpc's server and codes/status machinery with a small
// JSON wire codec (codec.go), keeping the wire format hand-inspectable
// while using grpc's connection and method-dispatch model since this surface needs
// bidirectional streaming (Connect) that a plain HTTP handler would not
// give for free.
package grpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/golemcloud/worker-executor/internal/hostfunc/transport"
	"github.com/golemcloud/worker-executor/internal/invocation"
	"github.com/golemcloud/worker-executor/internal/leader"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/promise"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/internal/scheduler"
	"github.com/golemcloud/worker-executor/internal/tracing"
	"github.com/golemcloud/worker-executor/internal/workerexecutor"
	"github.com/golemcloud/worker-executor/internal/workerstate"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// FileSystem is the minimal surface Service needs from a worker's sandboxed
// filesystem; nil means this node has none configured, and
// ListDirectory/GetFileContents report golemerr.InvalidRequest rather than
// panicking.
type FileSystem interface {
	ListDirectory(ctx context.Context, worker oplog.WorkerID, path string) ([]DirEntry, error)
	ReadFile(ctx context.Context, worker oplog.WorkerID, path string) ([]byte, error)
}

// Service implements the worker-executor control plane over replay,
// workerstate, and invocation: thin handlers that translate wire messages
// into calls against the durability core, translating golemerr.Error back
// into a grpc status the same way internal/rpc translates its own
// ErrorResponse.
type Service struct {
	oplogStore oplog.Store
	stateStore *workerstate.Store
	shards     *leader.Manager
	fs         FileSystem
	nowMs      func() int64

	guest     workerexecutor.Guest
	outbound  transport.Transport
	promises  *promise.Store
	scheduler *scheduler.Scheduler
	memoryCap uint64
	metrics   *tracing.MetricsCollector

	mu        sync.Mutex
	engines   map[workerKey]*replay.Engine
	queues    map[workerKey]*invocation.Queue
	executors map[workerKey]context.CancelFunc
	running   sync.WaitGroup
}

type workerKey struct {
	componentID string
	workerName  string
}

func keyOf(w oplog.WorkerID) workerKey {
	return workerKey{componentID: w.ComponentID, workerName: w.WorkerName}
}

// Config configures a Service.
type Config struct {
	OplogStore oplog.Store
	StateStore *workerstate.Store

	// Shards restricts operations to workers whose component hashes to a
	// shard this node owns; nil means single-node (every request accepted).
	Shards *leader.Manager

	// FS backs ListDirectory/GetFileContents; nil disables both.
	FS FileSystem

	// Guest is the WASM component runtime adapter. When set, the Service
	// starts a workerexecutor.Executor per worker to drain its invocation
	// queue; nil leaves admission/result-lookup behavior only, for nodes
	// (and tests) that drive workers externally.
	Guest workerexecutor.Guest

	// Outbound is the transport chain (retry, signing, bearer tokens) a
	// worker's outgoing HTTP host calls deliver through.
	Outbound transport.Transport

	// Promises and Scheduler back the golem:api promise/sleep surface of
	// executor-driven workers.
	Promises  *promise.Store
	Scheduler *scheduler.Scheduler

	// MaxLinearMemory caps each worker's linear memory; 0 means unlimited.
	MaxLinearMemory uint64

	// Metrics records executor-driven invocation metrics; nil disables.
	Metrics *tracing.MetricsCollector

	// NowMs returns the current time in milliseconds since epoch.
	NowMs func() int64
}

// New creates a Service backed by cfg.
func New(cfg Config) *Service {
	nowMs := cfg.NowMs
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	return &Service{
		oplogStore: cfg.OplogStore,
		stateStore: cfg.StateStore,
		shards:     cfg.Shards,
		fs:         cfg.FS,
		nowMs:      nowMs,
		guest:      cfg.Guest,
		outbound:   cfg.Outbound,
		promises:   cfg.Promises,
		scheduler:  cfg.Scheduler,
		memoryCap:  cfg.MaxLinearMemory,
		metrics:    cfg.Metrics,
		engines:    make(map[workerKey]*replay.Engine),
		queues:     make(map[workerKey]*invocation.Queue),
		executors:  make(map[workerKey]context.CancelFunc),
	}
}

// Shutdown stops every running worker executor and waits for them to
// drain. Safe to call on a Service that never started one.
func (s *Service) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.executors {
		cancel()
	}
	s.executors = make(map[workerKey]context.CancelFunc)
	s.mu.Unlock()
	s.running.Wait()
}

// ensureExecutor starts the per-worker executor loop on first use. The
// executor adopts the Service's cached engine so the oplog keeps a single
// writer per worker.
func (s *Service) ensureExecutor(ctx context.Context, worker oplog.WorkerID) error {
	if s.guest == nil {
		return nil
	}

	engine, err := s.engineFor(ctx, worker)
	if err != nil {
		return err
	}
	queue := s.queueFor(worker)

	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyOf(worker)
	if _, ok := s.executors[key]; ok {
		return nil
	}

	exec, err := workerexecutor.New(ctx, workerexecutor.Config{
		Worker:          worker,
		Store:           s.oplogStore,
		States:          s.stateStore,
		Queue:           queue,
		Guest:           s.guest,
		Engine:          engine,
		Outbound:        s.outbound,
		Promises:        s.promises,
		Scheduler:       s.scheduler,
		MaxLinearMemory: s.memoryCap,
		Metrics:         s.metrics,
		NowMs:           s.nowMs,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.executors[key] = cancel
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		_ = exec.Run(runCtx)
	}()
	return nil
}

// Register attaches Service to a grpc.Server under the hand-written
// ServiceDesc below.
func Register(s *grpclib.Server, svc *Service) {
	s.RegisterService(&serviceDesc, svc)
}

func (s *Service) checkShard(worker oplog.WorkerID) error {
	if s.shards == nil {
		return nil
	}
	_, err := s.shards.Route(worker.ComponentID)
	return err
}

func (s *Service) engineFor(ctx context.Context, worker oplog.WorkerID) (*replay.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(worker)
	if e, ok := s.engines[key]; ok {
		return e, nil
	}
	e, err := replay.NewEngine(ctx, s.oplogStore, worker)
	if err != nil {
		return nil, err
	}
	s.engines[key] = e
	return e, nil
}

func (s *Service) queueFor(worker oplog.WorkerID) *invocation.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(worker)
	if q, ok := s.queues[key]; ok {
		return q
	}
	q := invocation.New(invocation.WorkerResultLookup{Store: s.stateStore, Worker: worker})
	s.queues[key] = q
	return q
}

// CreateWorker records a Create entry for req.Worker and seeds its
// WorkerStatusRecord.
func (s *Service) CreateWorker(ctx context.Context, req *CreateWorkerRequest) (*CreateWorkerResponse, error) {
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}

	last, err := s.oplogStore.LastIndex(ctx, worker)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reading last oplog index: %v", err)
	}
	if last != 0 {
		return nil, toStatus(golemerr.WorkerAlreadyExists())
	}

	entry := oplog.Entry{
		Index:            1,
		Kind:             oplog.KindCreate,
		Timestamp:        s.nowMs(),
		ComponentVersion: req.ComponentVersion,
		Args:             req.Args,
		Env:              req.Env,
	}
	if err := s.oplogStore.Append(ctx, worker, entry); err != nil {
		return nil, status.Errorf(codes.Internal, "appending create entry: %v", err)
	}

	next := workerstate.Reduce(workerstate.Empty(), entry)
	if err := s.stateStore.Apply(ctx, worker, next); err != nil {
		return nil, status.Errorf(codes.Internal, "seeding worker status: %v", err)
	}

	return &CreateWorkerResponse{}, nil
}

// GetWorker reports worker's current WorkerStatusRecord.
func (s *Service) GetWorker(ctx context.Context, req *GetWorkerRequest) (*GetWorkerResponse, error) {
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}

	rec := s.stateStore.Get(worker)
	if rec.OplogIdx == 0 {
		return nil, toStatus(golemerr.WorkerNotFound())
	}

	return &GetWorkerResponse{
		Status:           string(rec.Status),
		ComponentVersion: rec.ComponentVersion,
		OplogIdx:         uint64(rec.OplogIdx),
	}, nil
}

// DeleteWorker removes worker's status record.
func (s *Service) DeleteWorker(ctx context.Context, req *DeleteWorkerRequest) (*DeleteWorkerResponse, error) {
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	key := keyOf(worker)
	if cancel, ok := s.executors[key]; ok {
		cancel()
		delete(s.executors, key)
	}
	s.mu.Unlock()

	s.stateStore.Delete(worker)
	return &DeleteWorkerResponse{}, nil
}

// Invoke enqueues a fire-and-forget call; its result is retrieved later via
// InvokeAndAwait with the same idempotency key.
func (s *Service) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	if _, _, err := s.admit(ctx, req.Worker, req.Function, req.IdempotencyKey, req.ArgsJSON); err != nil {
		return nil, err
	}
	return &InvokeResponse{}, nil
}

// InvokeAndAwait enqueues a call and blocks until its terminal oplog entry
// is appended, returning the encoded result.
func (s *Service) InvokeAndAwait(ctx context.Context, req *InvokeRequest) (*InvokeAndAwaitResponse, error) {
	idx, alreadyDone, err := s.admit(ctx, req.Worker, req.Function, req.IdempotencyKey, req.ArgsJSON)
	if err != nil {
		return nil, err
	}

	worker := toWorkerID(req.Worker)
	if !alreadyDone {
		idx, err = s.awaitResult(ctx, worker, req.IdempotencyKey)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "awaiting invocation result: %v", err)
		}
	}

	entries, err := s.oplogStore.Read(ctx, worker, idx, idx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reading invocation result: %v", err)
	}
	if len(entries) != 1 || entries[0].Response == nil {
		return nil, status.Errorf(codes.Internal, "invocation result entry %d has no response payload", idx)
	}
	return &InvokeAndAwaitResponse{ResultJSON: entries[0].Response.Inline}, nil
}

// admit enqueues a call, reporting whether it was already completed by a
// prior delivery of the same idempotency key (in which case idx is its
// terminal entry's index) or freshly admitted to the worker's queue.
func (s *Service) admit(ctx context.Context, ref WorkerRef, function, idempotencyKey string, argsJSON []byte) (oplog.Index, bool, error) {
	worker := toWorkerID(ref)
	if err := s.checkShard(worker); err != nil {
		return 0, false, toStatus(err)
	}

	if rec := s.stateStore.Get(worker); rec.Status == workerstate.StatusFailed {
		return 0, false, toStatus(golemerr.PreviousInvocationFailed(
			fmt.Sprintf("worker %s/%s is in Failed state", worker.ComponentID, worker.WorkerName)))
	}

	if err := s.ensureExecutor(ctx, worker); err != nil {
		return 0, false, status.Errorf(codes.Internal, "starting worker executor: %v", err)
	}

	q := s.queueFor(worker)
	idx, alreadyDone, err := q.Enqueue(ctx, invocation.Invocation{
		IdempotencyKey: idempotencyKey,
		Function:       function,
		Request:        &oplog.Payload{Inline: argsJSON},
		Source:         invocation.SourceExternal,
	})
	if err != nil {
		return 0, false, status.Errorf(codes.Internal, "enqueueing invocation: %v", err)
	}
	return idx, alreadyDone, nil
}

// awaitResult polls worker's WorkerStatusRecord.InvocationResults for
// idempotencyKey's terminal index. Polling rather than waking on the
// executor's completion keeps this path identical whether the invocation
// is drained by this node's own executor (Guest configured) or by an
// external driver (tests, embedders without a WASM runtime).
func (s *Service) awaitResult(ctx context.Context, worker oplog.WorkerID, idempotencyKey string) (oplog.Index, error) {
	lookup := invocation.WorkerResultLookup{Store: s.stateStore, Worker: worker}
	if idx, ok := lookup.ResultFor(idempotencyKey); ok {
		return idx, nil
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			if idx, ok := lookup.ResultFor(idempotencyKey); ok {
				return idx, nil
			}
		}
	}
}

// Interrupt appends an Interrupted entry for worker.
func (s *Service) Interrupt(ctx context.Context, req *InterruptRequest) (*InterruptResponse, error) {
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}

	e, err := s.engineFor(ctx, worker)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "loading worker engine: %v", err)
	}

	idx, err := e.Append(ctx, oplog.Entry{Kind: oplog.KindInterrupted})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "appending interrupt: %v", err)
	}

	next := workerstate.Reduce(s.stateStore.Get(worker), oplog.Entry{Index: idx, Kind: oplog.KindInterrupted})
	if err := s.stateStore.Apply(ctx, worker, next); err != nil {
		return nil, status.Errorf(codes.Internal, "applying interrupt: %v", err)
	}

	return &InterruptResponse{}, nil
}

// Resume transitions worker back to Running.
func (s *Service) Resume(ctx context.Context, req *ResumeRequest) (*ResumeResponse, error) {
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}

	current := s.stateStore.Get(worker)
	if !workerstate.CanTransition(current.Status, workerstate.StatusRunning) {
		return nil, toStatus(golemerr.FailedToResumeWorker(
			fmt.Sprintf("cannot resume from %s", current.Status), nil))
	}
	next := current
	next.Status = workerstate.StatusRunning
	next.OplogIdx++
	if err := s.stateStore.Apply(ctx, worker, next); err != nil {
		return nil, status.Errorf(codes.Internal, "applying resume: %v", err)
	}
	return &ResumeResponse{}, nil
}

// ListDirectory lists req.Path in worker's sandboxed filesystem.
func (s *Service) ListDirectory(ctx context.Context, req *ListDirectoryRequest) (*ListDirectoryResponse, error) {
	if s.fs == nil {
		return nil, toStatus(golemerr.InvalidRequest("no sandboxed filesystem configured on this node"))
	}
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}
	entries, err := s.fs.ListDirectory(ctx, worker, req.Path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "listing directory: %v", err)
	}
	return &ListDirectoryResponse{Entries: entries}, nil
}

// GetFileContents reads one file from worker's sandboxed filesystem.
func (s *Service) GetFileContents(ctx context.Context, req *GetFileContentsRequest) (*GetFileContentsResponse, error) {
	if s.fs == nil {
		return nil, toStatus(golemerr.InvalidRequest("no sandboxed filesystem configured on this node"))
	}
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}
	contents, err := s.fs.ReadFile(ctx, worker, req.Path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reading file: %v", err)
	}
	return &GetFileContentsResponse{Contents: contents}, nil
}

// GetOplog returns a worker's oplog slice, summarized for the wire.
func (s *Service) GetOplog(ctx context.Context, req *GetOplogRequest) (*GetOplogResponse, error) {
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return nil, toStatus(err)
	}

	from := oplog.Index(req.FromIndex)
	to := from + oplog.Index(req.Count) - 1
	entries, err := s.oplogStore.Read(ctx, worker, from, to)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reading oplog: %v", err)
	}

	out := make([]OplogEntrySummary, len(entries))
	for i, e := range entries {
		out[i] = OplogEntrySummary{
			Index:        uint64(e.Index),
			Kind:         string(e.Kind),
			FunctionName: e.FunctionName,
			Timestamp:    e.Timestamp,
		}
	}
	return &GetOplogResponse{Entries: out}, nil
}

// Connect streams worker's Log oplog entries as they are appended, tailing
// the oplog by polling rather than subscribing to a push bus - there is no
// broker wired on this node's write path, so poll-tailing the worker's own
// durable log is the only source of truth this handler needs.
func (s *Service) Connect(req *ConnectRequest, stream connectStream) error {
	worker := toWorkerID(req.Worker)
	if err := s.checkShard(worker); err != nil {
		return toStatus(err)
	}

	ctx := stream.Context()
	var cursor oplog.Index = 1
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last, err := s.oplogStore.LastIndex(ctx, worker)
			if err != nil {
				return status.Errorf(codes.Internal, "reading last oplog index: %v", err)
			}
			if last < cursor {
				continue
			}
			entries, err := s.oplogStore.Read(ctx, worker, cursor, last)
			if err != nil {
				return status.Errorf(codes.Internal, "reading oplog: %v", err)
			}
			for _, e := range entries {
				if e.Kind != oplog.KindLog {
					continue
				}
				if err := stream.Send(&ConnectFrame{Log: &LogLine{Level: e.LogLevel, Message: e.LogMessage}}); err != nil {
					return err
				}
			}
			cursor = last + 1
		}
	}
}

// connectStream is the subset of grpc.ServerStream Connect needs, narrowed
// for testability without a live grpc.Server.
type connectStream interface {
	Context() context.Context
	Send(*ConnectFrame) error
}

func toWorkerID(ref WorkerRef) oplog.WorkerID {
	return oplog.WorkerID{ComponentID: ref.ComponentID, WorkerName: ref.WorkerName}
}

// toStatus translates a golemerr.Error into a grpc status the same way
// internal/rpc's ErrorResponse carries structured error detail back to a
// caller, mapping the taxonomy's retriable/fatal distinction onto grpc's
// codes rather than collapsing everything to Internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	gerr, ok := err.(*golemerr.Error)
	if !ok {
		return status.Error(codes.Unknown, err.Error())
	}

	switch gerr.Type {
	case golemerr.TypeInvalidRequest, golemerr.TypeParamTypeMismatch,
		golemerr.TypeNoValueInMessage, golemerr.TypeValueMismatch:
		return status.Error(codes.InvalidArgument, gerr.Error())
	case golemerr.TypeWorkerNotFound, golemerr.TypePromiseNotFound:
		return status.Error(codes.NotFound, gerr.Error())
	case golemerr.TypeWorkerAlreadyExists:
		return status.Error(codes.AlreadyExists, gerr.Error())
	case golemerr.TypeInvalidShardId:
		return status.Error(codes.Unavailable, gerr.Error())
	case golemerr.TypeInterrupted:
		return status.Error(codes.Canceled, gerr.Error())
	default:
		return status.Error(codes.Internal, gerr.Error())
	}
}
