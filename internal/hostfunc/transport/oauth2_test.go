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

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuth2Config_Validate(t *testing.T) {
	valid := OAuth2Config{TokenURL: "https://auth/token", ClientID: "id", ClientSecret: "secret"}
	assert.NoError(t, valid.Validate())

	for name, cfg := range map[string]OAuth2Config{
		"missing token url": {ClientID: "id", ClientSecret: "secret"},
		"missing client id": {TokenURL: "https://auth/token", ClientSecret: "secret"},
		"missing secret":    {TokenURL: "https://auth/token", ClientID: "id"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOAuth2Transport_AttachesBearerAndCachesToken(t *testing.T) {
	var tokenCalls atomic.Int32
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	}))
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "idem-1", r.Header.Get("idempotency-key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	ctx := context.Background()
	tr, err := NewOAuth2Transport(ctx, NewHTTPTransport(nil, quickRetry()), OAuth2Config{
		TokenURL:     auth.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "oauth2", tr.Name())

	for i := 0; i < 3; i++ {
		resp, err := tr.Execute(ctx, &Request{
			Method:  "GET",
			URL:     api.URL,
			Headers: map[string]string{"idempotency-key": "idem-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}
	assert.Equal(t, int32(1), tokenCalls.Load(), "token must be cached across calls")
}

func TestOAuth2Transport_TokenFailureIsAuthError(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer auth.Close()

	ctx := context.Background()
	tr, err := NewOAuth2Transport(ctx, NewHTTPTransport(nil, quickRetry()), OAuth2Config{
		TokenURL:     auth.URL,
		ClientID:     "id",
		ClientSecret: "wrong",
	})
	require.NoError(t, err)

	_, err = tr.Execute(ctx, &Request{Method: "GET", URL: "https://api.example.com"})
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.IsType(ErrorTypeAuth))
}

func TestOAuth2Transport_InvalidConfigRejectedAtConstruction(t *testing.T) {
	_, err := NewOAuth2Transport(context.Background(), NewHTTPTransport(nil, nil), OAuth2Config{})
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.IsType(ErrorTypeInvalidReq))
}
