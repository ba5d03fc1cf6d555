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

// Package memory implements an auth resolver whose users are a fixed,
// config-provided map of Authorization header to user record. Useful for
// integration tests that need several distinct identities without a remote
// user service.
package memory

import (
	"context"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/auth/manager/registry"
	"github.com/qabel/blockserver/pkg/errtypes"
)

func init() {
	registry.Register("memory", New)
}

// Entry is one configured identity, keyed in config by its Authorization
// header value.
type Entry struct {
	UserID              int64 `mapstructure:"user_id"`
	Active              bool  `mapstructure:"active"`
	BlockQuota          int64 `mapstructure:"block_quota"`
	MonthlyTrafficQuota int64 `mapstructure:"monthly_traffic_quota"`
}

type config struct {
	Users map[string]Entry `mapstructure:"users"`
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "memory: error decoding config")
	}
	return c, nil
}

type resolver struct {
	byHeader map[string]auth.User
	byID     map[int64]auth.User
}

// New returns an auth resolver backed by a fixed map of header to user.
func New(m map[string]interface{}) (auth.Resolver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}

	r := &resolver{
		byHeader: make(map[string]auth.User, len(c.Users)),
		byID:     make(map[int64]auth.User, len(c.Users)),
	}
	for header, e := range c.Users {
		u := auth.User{
			UserID:              e.UserID,
			Active:              e.Active,
			BlockQuota:          e.BlockQuota,
			MonthlyTrafficQuota: e.MonthlyTrafficQuota,
		}
		r.byHeader[header] = u
		r.byID[e.UserID] = u
	}
	return r, nil
}

func (r *resolver) Auth(ctx context.Context, header string) (auth.User, error) {
	u, ok := r.byHeader[header]
	if !ok {
		return auth.User{}, errtypes.InvalidCredentials(header)
	}
	if !u.Active {
		return auth.User{}, errtypes.UserRequired(header)
	}
	return u, nil
}

func (r *resolver) GetUser(ctx context.Context, userID int64) (auth.User, error) {
	u, ok := r.byID[userID]
	if !ok {
		return auth.User{}, errtypes.NotFound("user")
	}
	return u, nil
}

func (r *resolver) Bypass(header string) bool {
	return false
}
