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

// Package dev implements a fixed-credential auth resolver for local
// development and integration tests, standing in for the remote user
// service without requiring one to be reachable.
package dev

import (
	"context"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/auth/manager/registry"
	"github.com/qabel/blockserver/pkg/errtypes"
)

func init() {
	registry.Register("dev", New)
}

type config struct {
	// BypassToken is the single Authorization header value this resolver
	// accepts; it always resolves to the same User and reports Bypass=true
	// so prefix-ownership checks are skipped by the request engine.
	BypassToken string `mapstructure:"bypass_token"`
	UserID      int64  `mapstructure:"user_id"`
	BlockQuota  int64  `mapstructure:"block_quota"`
	TrafficQuota int64 `mapstructure:"traffic_quota"`
}

func (c *config) init() {
	if c.BypassToken == "" {
		c.BypassToken = "Token dev"
	}
	if c.UserID == 0 {
		c.UserID = 1
	}
	if c.BlockQuota == 0 {
		c.BlockQuota = 2 * 1024 * 1024 * 1024
	}
	if c.TrafficQuota == 0 {
		c.TrafficQuota = 100 * 1024 * 1024 * 1024
	}
}

type resolver struct {
	conf *config
	user auth.User
}

// New returns a dev-mode auth resolver accepting a single configured bypass
// token.
func New(m map[string]interface{}) (auth.Resolver, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "dev: error decoding config")
	}
	c.init()

	return &resolver{
		conf: c,
		user: auth.User{
			UserID:              c.UserID,
			Active:              true,
			BlockQuota:          c.BlockQuota,
			MonthlyTrafficQuota: c.TrafficQuota,
		},
	}, nil
}

func (r *resolver) Auth(ctx context.Context, header string) (auth.User, error) {
	if header != r.conf.BypassToken {
		return auth.User{}, errtypes.InvalidCredentials(header)
	}
	return r.user, nil
}

func (r *resolver) GetUser(ctx context.Context, userID int64) (auth.User, error) {
	if userID != r.user.UserID {
		return auth.User{}, errtypes.NotFound("user")
	}
	return r.user, nil
}

func (r *resolver) Bypass(header string) bool {
	return header == r.conf.BypassToken
}
