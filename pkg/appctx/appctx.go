// Copyright 2018-2019 CERN
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
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package appctx creates a context with useful components attached to it,
// like the request-scoped logger and the request trace id.
package appctx

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type traceKey struct{}

// TokenHeader is the HTTP header carrying the caller's opaque auth token.
const TokenHeader = "Authorization"

type tokenKey struct{}

// WithLogger returns a context with an associated logger.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// GetLogger returns the logger associated with the given context, or a
// disabled logger in case no logger is stored inside the context.
func GetLogger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithTrace returns a context with an associated request trace id.
func WithTrace(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// GetTrace returns the trace id stored in the context, or "unknown" if none
// was set.
func GetTrace(ctx context.Context) string {
	if t, ok := ctx.Value(traceKey{}).(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// NewTrace generates a fresh trace id.
func NewTrace() string {
	return uuid.NewString()
}

// ContextSetToken stores the caller's opaque auth token in the context.
func ContextSetToken(ctx context.Context, tkn string) context.Context {
	return context.WithValue(ctx, tokenKey{}, tkn)
}

// ContextGetToken returns the caller's opaque auth token, if any was stored.
func ContextGetToken(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	return t, ok
}
