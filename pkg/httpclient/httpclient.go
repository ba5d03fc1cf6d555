// Copyright 2018-2023 CERN
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

// Package httpclient wraps http.Client so every outbound call the gateway
// makes (to the remote user service) carries the request's trace id and
// forces callers to pass a context.
package httpclient

import (
	"errors"
	"net/http"
	"time"

	"github.com/qabel/blockserver/pkg/appctx"
)

func New(opts ...Option) *Client {
	options := newOptions(opts...)

	var tr http.RoundTripper
	if options.RoundTripper == nil {
		tr = &injectTransport{rt: http.DefaultTransport}
	} else {
		tr = &injectTransport{rt: options.RoundTripper}
	}

	httpClient := &http.Client{
		Timeout:   options.Timeout,
		Transport: tr,
	}

	return &Client{c: httpClient}
}

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Timeout      time.Duration
	RoundTripper http.RoundTripper
}

func newOptions(opts ...Option) Options {
	opt := Options{Timeout: 10 * time.Second}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}

// Timeout sets the client-wide request timeout.
func Timeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}

// RoundTripper sets a custom RoundTripper, mostly used by tests.
func RoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.RoundTripper = rt
	}
}

// Client wraps a http.Client but only exposes the Do method to force
// consumers to always create a request with http.NewRequestWithContext().
type Client struct {
	c *http.Client
}

func (c *Client) Do(r *http.Request) (*http.Response, error) {
	if r.Context() == nil {
		return nil, errors.New("error: request must have a context")
	}
	return c.c.Do(r)
}

func (c *Client) GetNativeHTTP() *http.Client {
	return c.c
}

type injectTransport struct {
	rt http.RoundTripper
}

func (t injectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	r.Header.Set("X-Trace-ID", appctx.GetTrace(ctx))
	return t.rt.RoundTrip(r)
}
