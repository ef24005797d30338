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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SigningConfig configures SigV4 signing for a worker whose outgoing calls
// target an AWS-fronted service.
type SigningConfig struct {
	// Region and Service name the signing scope ("eu-west-1", "execute-api").
	Region  string
	Service string

	// Credentials overrides the default AWS credential chain; nil selects
	// the chain (env, shared config, instance role).
	Credentials aws.CredentialsProvider
}

// Validate reports whether the config can produce a usable signer.
func (c *SigningConfig) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required for sigv4 signing")
	}
	if c.Service == "" {
		return fmt.Errorf("service is required for sigv4 signing")
	}
	return nil
}

// SigningTransport decorates another Transport with AWS SigV4 request
// signing: each outgoing request is signed - payload hash, X-Amz-Date,
// Authorization - and then handed to the inner transport for delivery.
// Each request is signed once before it is handed to the inner transport,
// whose retries resend the same signed headers. Signing happens on the live
// path only; a replayed call never
// reaches this layer, so credential rotation between run and replay is
// invisible to the worker.
type SigningTransport struct {
	inner  Transport
	cfg    SigningConfig
	signer *v4.Signer

	mu       sync.Mutex
	provider aws.CredentialsProvider
	cached   aws.Credentials
}

// NewSigningTransport builds a SigningTransport over inner, resolving the
// credential provider eagerly so a misconfigured node fails at startup
// rather than on a worker's first outgoing call.
func NewSigningTransport(ctx context.Context, inner Transport, cfg SigningConfig) (*SigningTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &TransportError{Type: ErrorTypeInvalidReq, Message: err.Error(), Cause: err}
	}

	provider := cfg.Credentials
	if provider == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, &TransportError{
				Type:    ErrorTypeAuth,
				Message: fmt.Sprintf("failed to load AWS configuration: %v", err),
				Cause:   err,
			}
		}
		provider = awsCfg.Credentials
	}

	return &SigningTransport{
		inner:    inner,
		cfg:      cfg,
		signer:   v4.NewSigner(),
		provider: provider,
	}, nil
}

// VerifyCredentials calls STS GetCallerIdentity so an operator can check a
// node's AWS identity at startup instead of discovering a bad role on the
// first signed worker call.
func (t *SigningTransport) VerifyCredentials(ctx context.Context) error {
	client := sts.New(sts.Options{Region: t.cfg.Region, Credentials: t.provider})
	if _, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return &TransportError{
			Type:    ErrorTypeAuth,
			Message: fmt.Sprintf("AWS credential verification failed: %v", err),
			Cause:   err,
		}
	}
	return nil
}

func (t *SigningTransport) credentials(ctx context.Context) (aws.Credentials, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cached.HasKeys() && !t.cached.Expired() {
		return t.cached, nil
	}
	creds, err := t.provider.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, &TransportError{
			Type:    ErrorTypeAuth,
			Message: fmt.Sprintf("failed to retrieve AWS credentials: %v", err),
			Cause:   err,
		}
	}
	t.cached = creds
	return creds, nil
}

// Execute signs req and delegates delivery to the inner transport.
func (t *SigningTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	creds, err := t.credentials(ctx)
	if err != nil {
		return nil, err
	}

	var body bytes.Reader
	if req.Body != nil {
		body = *bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequest(req.Method, req.URL, &body)
	if err != nil {
		return nil, &TransportError{Type: ErrorTypeInvalidReq, Message: fmt.Sprintf("failed to build request for signing: %v", err), Cause: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	payloadHash := sha256.Sum256(req.Body)
	if err := t.signer.SignHTTP(ctx, creds, httpReq,
		hex.EncodeToString(payloadHash[:]), t.cfg.Service, t.cfg.Region, time.Now().UTC()); err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeAuth,
			Message: fmt.Sprintf("failed to sign request: %v", err),
			Cause:   err,
		}
	}

	signed := &Request{Method: req.Method, URL: req.URL, Body: req.Body, Headers: make(map[string]string, len(httpReq.Header))}
	for k := range httpReq.Header {
		signed.Headers[k] = httpReq.Header.Get(k)
	}
	return t.inner.Execute(ctx, signed)
}

// Name returns the transport identifier.
func (t *SigningTransport) Name() string { return "aws-sigv4" }

// SetRateLimiter forwards to the inner transport, which owns delivery.
func (t *SigningTransport) SetRateLimiter(limiter RateLimiter) {
	t.inner.SetRateLimiter(limiter)
}
