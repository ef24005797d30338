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

// Package log configures the node's structured slog logging and defines
// the field keys shared across the executor, so a worker's log lines can
// be joined on component/worker identity wherever they were emitted.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output format.
type Format string

const (
	// FormatJSON outputs one JSON object per line, for collectors.
	FormatJSON Format = "json"
	// FormatText outputs human-readable text, for terminals.
	FormatText Format = "text"
)

// LevelTrace is more verbose than Debug, used for per-host-call detail
// (journal payloads, replay cursor movement).
const LevelTrace = slog.Level(-8)

// Field keys shared across the codebase, so every subsystem names worker
// identity and journal position the same way.
const (
	// ComponentIDKey is the field key for a worker's component UUID.
	ComponentIDKey = "component_id"
	// WorkerNameKey is the field key for a worker's name.
	WorkerNameKey = "worker_name"
	// OplogIdxKey is the field key for an oplog index.
	OplogIdxKey = "oplog_idx"
	// IdempotencyKeyKey is the field key for an invocation's idempotency key.
	IdempotencyKeyKey = "idempotency_key"
	// ShardIDKey is the field key for a shard number.
	ShardIDKey = "shard_id"
	// DurationKey is the field key for duration in milliseconds.
	DurationKey = "duration_ms"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format selects json or text output.
	Format Format

	// Output is the writer for log output; defaults to os.Stderr.
	Output io.Writer

	// AddSource adds source file and line information to logs.
	AddSource bool
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// FromEnv creates a Config from GOLEM_LOG_LEVEL, GOLEM_LOG_FORMAT, and
// GOLEM_LOG_SOURCE, falling back to DefaultConfig for anything unset.
func FromEnv() *Config {
	cfg := DefaultConfig()

	if level := os.Getenv("GOLEM_LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("GOLEM_LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}
	if os.Getenv("GOLEM_LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}
	return cfg
}

// New creates a structured logger from cfg (nil means DefaultConfig).
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithWorker returns a logger carrying a worker's identity on every line.
func WithWorker(logger *slog.Logger, componentID, workerName string) *slog.Logger {
	return logger.With(
		slog.String(ComponentIDKey, componentID),
		slog.String(WorkerNameKey, workerName),
	)
}

// WithComponent returns a logger naming the subsystem emitting the lines.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// Attr creates an attribute with an arbitrary value.
func Attr(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// String creates a string attribute.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) slog.Attr {
	return slog.Int64(key, value)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Duration creates a duration attribute in milliseconds.
func Duration(millis int64) slog.Attr {
	return slog.Int64(DurationKey, millis)
}

// SanitizeSecret redacts a secret so it never appears in logs; outbound
// credentials (bearer tokens, signing keys) pass through here before any
// transport-level logging.
func SanitizeSecret(secret string) string {
	return "[REDACTED]"
}

// Trace logs at trace level; the journal-payload firehose lives behind
// this so the default info level stays readable.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if !logger.Enabled(nil, LevelTrace) {
		return
	}
	logger.LogAttrs(nil, LevelTrace, msg, attrs...)
}
