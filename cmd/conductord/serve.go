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

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	grpclib "google.golang.org/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/golemcloud/worker-executor/internal/config"
	"github.com/golemcloud/worker-executor/internal/hostfunc"
	"github.com/golemcloud/worker-executor/internal/hostfunc/fs"
	"github.com/golemcloud/worker-executor/internal/hostfunc/transport"
	"github.com/golemcloud/worker-executor/internal/leader"
	"github.com/golemcloud/worker-executor/internal/log"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/promise"
	"github.com/golemcloud/worker-executor/internal/scheduler"
	"github.com/golemcloud/worker-executor/internal/tracing"
	"github.com/golemcloud/worker-executor/internal/workerexecutor/grpc"
	"github.com/golemcloud/worker-executor/internal/workerstate"
)

func newServeCommand(flags *rootFlags, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control-plane gRPC surface and timer wheel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runServe(cfg, logger)
		},
	}
}

func runServe(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oplogStore, closeStore, err := openOplogStore(cfg)
	if err != nil {
		return fmt.Errorf("opening oplog store: %w", err)
	}
	defer closeStore()

	stateStore := workerstate.New(nil)
	promiseStore := promise.New()

	var shards *leader.Manager
	if cfg.Distributed.Enabled {
		shardDB, err := sql.Open("pgx", cfg.Oplog.DSN)
		if err != nil {
			return fmt.Errorf("opening shard-leadership database: %w", err)
		}
		defer shardDB.Close()

		shards = leader.NewManager(leader.ManagerConfig{
			DB:         shardDB,
			InstanceID: cfg.Distributed.InstanceID,
			ShardCount: uint32(cfg.Distributed.ShardCount),
			Logger:     logger,
		})
		shards.Start(ctx)
		defer shards.Stop()
	}

	schedStore, closeSchedStore, err := openSchedulerStore(cfg)
	if err != nil {
		return fmt.Errorf("opening scheduler store: %w", err)
	}
	defer closeSchedStore()

	var sched *scheduler.Scheduler
	sched = scheduler.New(schedStore, dispatchAction(promiseStore, oplogStore, &sched, logger), scheduler.Config{
		Gate:   schedulerGate(shards),
		Logger: logger,
	})
	sched.Start(ctx)
	defer sched.Stop()

	registerHostFunctions(logger)

	outbound, err := buildOutboundTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building outbound transport: %w", err)
	}

	tracing.SetGlobalPropagator()
	provider, err := tracing.NewOTelProviderWithConfig(tracing.DefaultConfig())
	if err != nil {
		return fmt.Errorf("building tracing provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = provider.Shutdown(shutdownCtx)
	}()

	if cfg.Listen.MetricsAddr != "" {
		metricsSrv := &http.Server{Addr: cfg.Listen.MetricsAddr, Handler: provider.MetricsHandler()}
		go func() {
			logger.Info("metrics endpoint listening", log.String("addr", cfg.Listen.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics endpoint error", log.Error(err))
			}
		}()
		defer metricsSrv.Close()
	}

	svc := grpc.New(grpc.Config{
		OplogStore:      oplogStore,
		StateStore:      stateStore,
		Shards:          shards,
		Outbound:        outbound,
		Promises:        promiseStore,
		Scheduler:       sched,
		MaxLinearMemory: cfg.Worker.MaxLinearMemoryBytes,
		Metrics:         provider.MetricsCollector(),
		NowMs:           func() int64 { return time.Now().UnixMilli() },
	})
	defer svc.Shutdown()

	lis, err := net.Listen("tcp", cfg.Listen.GRPCAddr)
	if err != nil {
		return fmt.Errorf("binding control-plane listener on %s: %w", cfg.Listen.GRPCAddr, err)
	}

	server := grpclib.NewServer()
	grpc.Register(server, svc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control plane listening", log.String("addr", cfg.Listen.GRPCAddr), log.String("oplog_backend", cfg.Oplog.Backend))
		errCh <- server.Serve(lis)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", log.Attr("signal", sig.String()))
		cancel()
		server.GracefulStop()
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control plane server error: %w", err)
		}
		return nil
	}
}

// schedulerGate adapts a *leader.Manager's single-shard ownership check into
// a scheduler.LeaderGate; nil means single-node, where the scheduler's own
// default (always leader) applies.
func schedulerGate(shards *leader.Manager) scheduler.LeaderGate {
	if shards == nil {
		return nil
	}
	return shardZeroGate{shards}
}

// shardZeroGate gates the scheduler's timer wheel on ownership of shard 0:
// the wheel itself is not sharded, so exactly one node in the fleet must run
// it, and shard 0 is as good a designated owner as any.
type shardZeroGate struct{ shards *leader.Manager }

func (g shardZeroGate) IsLeader() bool { return g.shards.Owns(0) }

// dispatchAction builds the scheduler.Dispatcher that resolves a due
// scheduler.Action against the node's promise and oplog stores. schedRef is
// the address of the caller's *scheduler.Scheduler variable: it is nil at
// the moment dispatchAction is called (scheduler.New has not returned yet)
// but is assigned before any action can actually fire, which is how
// ArchiveOplog reschedules its own next pass.
func dispatchAction(promises *promise.Store, store oplog.Store, schedRef **scheduler.Scheduler, logger *slog.Logger) scheduler.Dispatcher {
	return func(ctx context.Context, action scheduler.Action) error {
		switch action.Kind {
		case scheduler.ActionCompletePromise:
			return dispatchCompletePromise(promises, action.CompletePromise)
		case scheduler.ActionArchiveOplog:
			return dispatchArchiveOplog(ctx, store, *schedRef, action.ArchiveOplog, logger)
		default:
			return fmt.Errorf("unknown scheduled action kind %q", action.Kind)
		}
	}
}

func dispatchCompletePromise(promises *promise.Store, a *scheduler.CompletePromiseAction) error {
	if a == nil {
		return fmt.Errorf("CompletePromise action missing its payload")
	}
	id, err := parsePromiseID(a.PromiseID)
	if err != nil {
		return err
	}
	return promises.Complete(id, a.Value)
}

func parsePromiseID(encoded string) (promise.ID, error) {
	parts := strings.Split(encoded, "/")
	if len(parts) != 3 {
		return promise.ID{}, fmt.Errorf("invalid promise ID %q", encoded)
	}
	idx, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return promise.ID{}, fmt.Errorf("invalid promise ID %q: %w", encoded, err)
	}
	return promise.ID{
		Worker:   oplog.WorkerID{ComponentID: parts[0], WorkerName: parts[1]},
		OplogIdx: oplog.Index(idx),
	}, nil
}

func dispatchArchiveOplog(ctx context.Context, store oplog.Store, sched *scheduler.Scheduler, a *scheduler.ArchiveOplogAction, logger *slog.Logger) error {
	if a == nil {
		return fmt.Errorf("ArchiveOplog action missing its payload")
	}
	archiver, ok := store.(oplog.Archiver)
	if !ok {
		logger.Warn("oplog store does not support archival, skipping", log.String("worker", a.Worker.WorkerName))
		return nil
	}
	if err := archiver.Archive(ctx, a.Worker, a.LastOplogIndex); err != nil {
		return err
	}
	if a.NextAfterMs > 0 && sched != nil {
		next := scheduler.NewEntry(a.NextAfterMs, scheduler.Action{Kind: scheduler.ActionArchiveOplog, ArchiveOplog: a})
		return sched.Schedule(ctx, next)
	}
	return nil
}

// registerHostFunctions builds a registry of durable host functions (clock,
// randomness, DNS resolution and the sandboxed filesystem, backing
// wasi:clocks, wasi:random, wasi:sockets and wasi:filesystem) and logs their
// names. Outbound HTTP is not registered here; it is built separately on
// buildOutboundTransport's transport. Run discards the returned registry, so
// it is not handed to the control-plane Service or to any executor.
func registerHostFunctions(logger *slog.Logger) *hostfunc.Registry {
	reg := hostfunc.NewRegistry()

	reg.Register(hostfunc.NewWallClock())
	reg.Register(hostfunc.NewMonotonicClock())

	random := hostfunc.NewRandom()
	reg.Register(hostfunc.NewGetRandomBytes(random))
	reg.Register(hostfunc.NewGetRandomU64(random))

	reg.Register(hostfunc.NewResolver())

	sandbox := fs.New()
	filesystem := hostfunc.NewFilesystem(sandbox, func() int64 { return time.Now().UnixMilli() })
	for _, fn := range []hostfunc.Function{
		filesystem.WriteFile(),
		filesystem.ReadFile(),
		filesystem.CreateDirectory(),
		filesystem.RemoveFile(),
		filesystem.RemoveDirectory(),
		filesystem.Rename(),
		filesystem.HardLink(),
		filesystem.Symlink(),
		filesystem.ListDirectory(),
		filesystem.GetInfo(),
	} {
		reg.Register(fn)
	}

	logger.Info("registered durable host functions", log.Attr("names", reg.Names()))
	return reg
}

// buildOutboundTransport assembles the delivery chain for workers'
// outgoing HTTP host calls: a retrying HTTP base, wrapped with SigV4
// signing or OAuth2 bearer tokens per the node's outbound auth config,
// rate-limited across the node when a limit is set.
func buildOutboundTransport(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	var chain transport.Transport = transport.NewHTTPTransport(nil, nil)

	switch cfg.Outbound.Auth {
	case "", "none":
	case "aws-sigv4":
		signed, err := transport.NewSigningTransport(ctx, chain, transport.SigningConfig{
			Region:  cfg.Outbound.AWSRegion,
			Service: cfg.Outbound.AWSService,
		})
		if err != nil {
			return nil, err
		}
		chain = signed
	case "oauth2":
		authed, err := transport.NewOAuth2Transport(ctx, chain, transport.OAuth2Config{
			TokenURL:     cfg.Outbound.OAuth2TokenURL,
			ClientID:     cfg.Outbound.OAuth2ClientID,
			ClientSecret: cfg.Outbound.OAuth2ClientSecret,
			Scopes:       cfg.Outbound.OAuth2Scopes,
		})
		if err != nil {
			return nil, err
		}
		chain = authed
	default:
		return nil, fmt.Errorf("unknown outbound auth %q", cfg.Outbound.Auth)
	}

	if cfg.Outbound.RateLimit > 0 {
		burst := cfg.Outbound.Burst
		if burst <= 0 {
			burst = int(cfg.Outbound.RateLimit) + 1
		}
		chain.SetRateLimiter(transport.NewTokenBucketLimiter(cfg.Outbound.RateLimit, burst))
	}
	return chain, nil
}
