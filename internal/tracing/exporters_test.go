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

package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpanExporter_Console(t *testing.T) {
	exp, err := newSpanExporter(context.Background(), ExporterConfig{Type: "console"})
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.NoError(t, exp.Shutdown(context.Background()))
}

func TestNewSpanExporter_OTLPGRPC(t *testing.T) {
	// WithInsecure + an unreachable endpoint: construction must still
	// succeed since otlptracegrpc.New only dials lazily on export.
	exp, err := newSpanExporter(context.Background(), ExporterConfig{
		Type:     "otlp",
		Endpoint: "127.0.0.1:0",
	})
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.NoError(t, exp.Shutdown(context.Background()))
}

func TestNewSpanExporter_OTLPHTTP(t *testing.T) {
	exp, err := newSpanExporter(context.Background(), ExporterConfig{
		Type:     "otlp-http",
		Endpoint: "127.0.0.1:0",
	})
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.NoError(t, exp.Shutdown(context.Background()))
}

func TestNewSpanExporter_Unknown(t *testing.T) {
	_, err := newSpanExporter(context.Background(), ExporterConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestSpanExporterOptions_EmptyByDefault(t *testing.T) {
	opts, err := spanExporterOptions(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestSpanExporterOptions_OneOptionPerExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exporters = []ExporterConfig{
		{Type: "console"},
		{Type: "otlp", Endpoint: "127.0.0.1:0"},
	}
	opts, err := spanExporterOptions(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}
