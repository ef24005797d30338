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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_OverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oplog:
  backend: sqlite
  dsn: /var/lib/golem/oplog.db
retry:
  max_attempts: 10
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Oplog.Backend)
	assert.Equal(t, "/var/lib/golem/oplog.db", cfg.Oplog.DSN)
	assert.Equal(t, 10, cfg.Retry.MaxAttempts)

	// Fields the file didn't set keep their Default() values.
	assert.Equal(t, "127.0.0.1:9091", cfg.Listen.GRPCAddr)
	assert.Equal(t, time.Second, cfg.Retry.MinDelay)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestWatchFile_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 5\n"), 0o644))

	reloaded := make(chan *Config, 1)
	w, err := WatchFile(path, func(cfg *Config) { reloaded <- cfg }, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 9\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9, cfg.Retry.MaxAttempts)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestLoad_GolemConfigFileEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	old, hadOld := os.LookupEnv("GOLEM_CONFIG_FILE")
	os.Setenv("GOLEM_CONFIG_FILE", path)
	defer func() {
		if hadOld {
			os.Setenv("GOLEM_CONFIG_FILE", old)
		} else {
			os.Unsetenv("GOLEM_CONFIG_FILE")
		}
	}()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}
