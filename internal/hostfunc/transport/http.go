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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPTransport is the base transport: plain net/http delivery with
// in-flight retry of transient failures. SigningTransport and
// OAuth2Transport wrap it (or each other) to inject credentials; workers
// whose targets need no auth use it directly.
type HTTPTransport struct {
	client  *http.Client
	retry   *RetryConfig
	limiter RateLimiter
}

// NewHTTPTransport creates an HTTPTransport over client (nil means
// http.DefaultClient) with the given retry policy (nil means
// DefaultRetryConfig).
func NewHTTPTransport(client *http.Client, retry *RetryConfig) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &HTTPTransport{client: client, retry: retry}
}

// Execute delivers req, re-attempting transient failures per the retry
// policy. Every attempt carries the identical headers - including the
// idempotency key the hostfunc layer set - so the remote can deduplicate.
// A response is returned whatever its status; an error means no response
// was obtained at all.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Type: ErrorTypeCancelled, Message: err.Error(), Cause: err}
		}
	}

	if req.Method == "" || req.URL == "" {
		return nil, &TransportError{Type: ErrorTypeInvalidReq, Message: "method and URL are required"}
	}

	return deliver(ctx, t.retry, func(ctx context.Context) (*Response, error) {
		return t.executeOnce(ctx, req)
	})
}

func (t *HTTPTransport) executeOnce(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Type: ErrorTypeInvalidReq, Message: fmt.Sprintf("failed to create request: %v", err), Cause: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Type: ErrorTypeTimeout, Message: err.Error(), Retryable: true, Cause: err}
		}
		return nil, &TransportError{Type: ErrorTypeConnection, Message: err.Error(), Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Type: ErrorTypeConnection, Message: fmt.Sprintf("failed to read response body: %v", err), Retryable: true, Cause: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// Name returns the transport identifier.
func (t *HTTPTransport) Name() string { return "http" }

// SetRateLimiter configures rate limiting applied before every Execute.
func (t *HTTPTransport) SetRateLimiter(limiter RateLimiter) {
	t.limiter = limiter
}
