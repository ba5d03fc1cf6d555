// Copyright 2018-2021 CERN
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

// Package remote implements the auth resolver that talks to the external
// user accounting service, caching results in the shared metadata cache so
// repeated requests from the same caller don't round-trip every time.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/auth/manager/registry"
	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/httpclient"
	"github.com/qabel/blockserver/pkg/metrics"
)

func init() {
	registry.Register("remote", New)
}

type config struct {
	// Host is the base URL of the user accounting service, e.g.
	// "https://accounting.example.org".
	Host string `mapstructure:"host"`
	// APISecret is sent as the APISECRET header on every request.
	APISecret string `mapstructure:"api_secret"`
	// TimeoutSeconds bounds each upstream call.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

func (c *config) init() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "remote: error decoding config")
	}
	return c, nil
}

type resolver struct {
	conf   *config
	client *httpclient.Client
	cache  cache.Cache
}

// New returns an auth resolver backed by the remote user accounting service,
// write-through caching results in c.
func New(m map[string]interface{}) (auth.Resolver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	c.init()
	if c.Host == "" {
		return nil, errtypes.BadRequest("remote: host is required")
	}

	return &resolver{
		conf:   c,
		client: httpclient.New(httpclient.Timeout(time.Duration(c.TimeoutSeconds) * time.Second)),
	}, nil
}

// WithCache attaches the shared metadata cache this resolver writes through
// to. Called once during wiring, after both the cache and auth registries
// have produced their instances. Satisfies auth.CacheWirer.
func (r *resolver) WithCache(c cache.Cache) {
	r.cache = c
}

type userResponse struct {
	UserID              int64 `json:"user_id"`
	Active              bool  `json:"active"`
	BlockQuota          int64 `json:"block_quota"`
	MonthlyTrafficQuota int64 `json:"monthly_traffic_quota"`
}

func (u userResponse) toUser() auth.User {
	return auth.User{
		UserID:              u.UserID,
		Active:              u.Active,
		BlockQuota:          u.BlockQuota,
		MonthlyTrafficQuota: u.MonthlyTrafficQuota,
	}
}

func (r *resolver) Auth(ctx context.Context, header string) (auth.User, error) {
	if r.cache != nil {
		if u, err := r.cache.GetAuth(ctx, header); err == nil {
			metrics.AuthCacheHits.WithLabelValues("hit").Inc()
			return u, nil
		}
		metrics.AuthCacheHits.WithLabelValues("miss").Inc()
	}

	u, err := r.lookup(ctx, map[string]interface{}{"auth": header})
	if err != nil {
		return auth.User{}, err
	}
	if !u.Active {
		return auth.User{}, errtypes.UserRequired(header)
	}
	if r.cache != nil {
		_ = r.cache.SetAuth(ctx, header, u)
	}
	return u, nil
}

func (r *resolver) GetUser(ctx context.Context, userID int64) (auth.User, error) {
	if r.cache != nil {
		if u, err := r.cache.GetUser(ctx, userID); err == nil {
			metrics.AuthCacheHits.WithLabelValues("hit").Inc()
			return u, nil
		}
		metrics.AuthCacheHits.WithLabelValues("miss").Inc()
	}

	u, err := r.lookup(ctx, map[string]interface{}{"user_id": userID})
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (r *resolver) Bypass(header string) bool {
	return false
}

func (r *resolver) lookup(ctx context.Context, payload map[string]interface{}) (auth.User, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return auth.User{}, errors.Wrap(err, "remote: error encoding request")
	}

	url := fmt.Sprintf("%s/api/v0/internal/user/", r.conf.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return auth.User{}, errors.Wrap(err, "remote: error building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("APISECRET", r.conf.APISecret)

	res, err := r.client.Do(req)
	if err != nil {
		return auth.User{}, errtypes.AuthUpstream(err.Error())
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusUnauthorized:
		return auth.User{}, errtypes.InvalidCredentials("remote rejected credentials")
	default:
		return auth.User{}, errtypes.AuthUpstream(fmt.Sprintf("unexpected status %d", res.StatusCode))
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return auth.User{}, errtypes.AuthUpstream(err.Error())
	}

	var ur userResponse
	if err := json.Unmarshal(raw, &ur); err != nil {
		return auth.User{}, errtypes.AuthUpstream("malformed response body")
	}
	return ur.toUser(), nil
}
