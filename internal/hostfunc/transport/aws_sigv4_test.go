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
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
		}, nil
	})
}

func TestSigningConfig_Validate(t *testing.T) {
	assert.NoError(t, (&SigningConfig{Region: "eu-west-1", Service: "execute-api"}).Validate())
	assert.Error(t, (&SigningConfig{Service: "execute-api"}).Validate())
	assert.Error(t, (&SigningConfig{Region: "eu-west-1"}).Validate())
}

func TestSigningTransport_SignsOutgoingRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256"), "got %q", auth)
		assert.Contains(t, auth, "Credential=AKIDEXAMPLE")
		assert.Contains(t, auth, "/eu-west-1/execute-api/aws4_request")
		assert.NotEmpty(t, r.Header.Get("X-Amz-Date"))
		assert.Equal(t, "idem-1", r.Header.Get("idempotency-key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	tr, err := NewSigningTransport(ctx, NewHTTPTransport(nil, quickRetry()), SigningConfig{
		Region:      "eu-west-1",
		Service:     "execute-api",
		Credentials: staticCredentials(),
	})
	require.NoError(t, err)
	assert.Equal(t, "aws-sigv4", tr.Name())

	resp, err := tr.Execute(ctx, &Request{
		Method:  "POST",
		URL:     srv.URL + "/orders",
		Headers: map[string]string{"idempotency-key": "idem-1"},
		Body:    []byte(`{"qty":3}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSigningTransport_CredentialFailureIsAuthError(t *testing.T) {
	failing := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{}, assert.AnError
	})

	ctx := context.Background()
	tr, err := NewSigningTransport(ctx, NewHTTPTransport(nil, quickRetry()), SigningConfig{
		Region:      "eu-west-1",
		Service:     "execute-api",
		Credentials: failing,
	})
	require.NoError(t, err)

	_, err = tr.Execute(ctx, &Request{Method: "GET", URL: "https://api.example.com"})
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.IsType(ErrorTypeAuth))
}

func TestSigningTransport_InvalidConfigRejectedAtConstruction(t *testing.T) {
	_, err := NewSigningTransport(context.Background(), NewHTTPTransport(nil, nil), SigningConfig{})
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.IsType(ErrorTypeInvalidReq))
}
