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
	"context"
	"net"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// Resolver wraps wasi:sockets/ip-name-lookup.resolve-addresses: DNS
// resolution has external visibility (it depends on the resolver and
// network the first execution happened to reach), so it is ReadRemote and
// its SerializableIpAddresses result is journaled - recovery reuses the
// recorded address list rather than re-resolving, which would be both
// slower and liable to return a different answer.
type Resolver struct {
	// LookupHost resolves a hostname to a list of IP address strings.
	// Defaults to net.DefaultResolver; tests substitute a fixed table.
	LookupHost func(ctx context.Context, host string) ([]string, error)
}

// NewResolver creates a Resolver backed by net.DefaultResolver.
func NewResolver() *Resolver {
	return &Resolver{LookupHost: func(ctx context.Context, host string) ([]string, error) {
		return net.DefaultResolver.LookupHost(ctx, host)
	}}
}

func (r *Resolver) Name() string { return "wasi:sockets/ip-name-lookup.resolve-addresses" }

func (r *Resolver) WrappedType() oplog.WrappedFunctionType { return oplog.ReadRemote }

// Invoke resolves args (a hostname string) to a KindList of KindString IP
// addresses - golem's SerializableIpAddresses - or an error result if
// resolution failed on the first (live) attempt.
func (r *Resolver) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindString {
		return value.Value{}, golemerr.ParamTypeMismatch("resolve-addresses expects a hostname string")
	}
	addrs, err := r.LookupHost(ctx, args.String)
	if err != nil {
		msg := value.Str(err.Error())
		return value.ResultErr(&msg), nil
	}
	items := make([]value.Value, len(addrs))
	for i, a := range addrs {
		items[i] = value.Str(a)
	}
	list := value.ListVal(items...)
	return value.ResultOk(&list), nil
}
