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
	"testing"

	"github.com/golemcloud/worker-executor/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingRequest_RoundTrip(t *testing.T) {
	req := IncomingRequest{
		Method:        "POST",
		Scheme:        "https",
		Authority:     "api.example.com",
		PathWithQuery: "/v1/orders?dry-run=true",
		Headers:       map[string]string{"content-type": "application/json", "accept": "*/*"},
		Body:          []byte(`{"qty":3}`),
		Trailers:      map[string]string{"grpc-status": "0"},
	}

	back, err := IncomingRequestFromValue(req.ToValue())
	require.NoError(t, err)
	assert.Equal(t, req, back)
}

func TestIncomingRequest_NoBodyDecodesToNil(t *testing.T) {
	req := IncomingRequest{
		Method:        "GET",
		Scheme:        "http",
		Authority:     "localhost:8080",
		PathWithQuery: "/health",
		Headers:       map[string]string{},
	}

	back, err := IncomingRequestFromValue(req.ToValue())
	require.NoError(t, err)
	assert.Nil(t, back.Body)
	assert.Nil(t, back.Trailers)
}

func TestIncomingRequest_ValueConformsToDeclaredType(t *testing.T) {
	req := IncomingRequest{
		Method:        "GET",
		Scheme:        "https",
		Authority:     "example.com",
		PathWithQuery: "/",
		Headers:       map[string]string{"host": "example.com"},
		Body:          []byte{1, 2, 3},
	}

	require.NoError(t, value.Validate(req.ToValue(), IncomingRequestType()))
}

func TestIncomingRequest_EncodingIsDeterministic(t *testing.T) {
	req := IncomingRequest{
		Method:        "GET",
		Scheme:        "https",
		Authority:     "example.com",
		PathWithQuery: "/",
		Headers:       map[string]string{"b": "2", "a": "1", "c": "3"},
	}

	first := req.ToValue()
	second := req.ToValue()
	assert.Equal(t, first, second)

	headers := first.Flds["headers"].List
	require.Len(t, headers, 3)
	assert.Equal(t, "a", headers[0].List[0].String)
	assert.Equal(t, "c", headers[2].List[0].String)
}
