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
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Config configures client-credentials token acquisition for a
// worker whose outgoing calls target an OAuth2-protected service.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Validate reports whether the config can acquire tokens.
func (c *OAuth2Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("token_url is required for oauth2")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required for oauth2")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required for oauth2")
	}
	return nil
}

// OAuth2Transport decorates another Transport with bearer-token injection:
// a token is acquired (and transparently refreshed near expiry) via the
// client-credentials grant, attached as the Authorization header, and the
// request handed to the inner transport. Token acquisition is live-path
// only - a replayed call reads its journaled response and never comes
// here, so token rotation between run and replay cannot diverge a worker.
type OAuth2Transport struct {
	inner  Transport
	source oauth2.TokenSource
}

// NewOAuth2Transport builds an OAuth2Transport over inner. The token
// source caches the current token and refreshes on demand; the first
// acquisition is deferred to the first Execute, since a node may configure
// OAuth2 for workers that never end up calling out.
func NewOAuth2Transport(ctx context.Context, inner Transport, cfg OAuth2Config) (*OAuth2Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &TransportError{Type: ErrorTypeInvalidReq, Message: err.Error(), Cause: err}
	}

	cc := clientcredentials.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}
	return &OAuth2Transport{
		inner:  inner,
		source: cc.TokenSource(ctx),
	}, nil
}

// Execute attaches a bearer token to req and delegates delivery.
func (t *OAuth2Transport) Execute(ctx context.Context, req *Request) (*Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeAuth,
			Message: fmt.Sprintf("failed to acquire OAuth2 token: %v", err),
			Cause:   err,
		}
	}

	authed := &Request{Method: req.Method, URL: req.URL, Body: req.Body, Headers: make(map[string]string, len(req.Headers)+1)}
	for k, v := range req.Headers {
		authed.Headers[k] = v
	}
	authed.Headers["Authorization"] = token.Type() + " " + token.AccessToken

	return t.inner.Execute(ctx, authed)
}

// Name returns the transport identifier.
func (t *OAuth2Transport) Name() string { return "oauth2" }

// SetRateLimiter forwards to the inner transport, which owns delivery.
func (t *OAuth2Transport) SetRateLimiter(limiter RateLimiter) {
	t.inner.SetRateLimiter(limiter)
}
