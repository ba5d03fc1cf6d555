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

// Package auth defines the contract for turning a caller's Authorization
// header into a User, cached or resolved against the remote user service.
package auth

import (
	"context"

	"github.com/qabel/blockserver/pkg/cache"
)

// User is the identity and quota information the gateway needs to authorize
// a request. It is an alias of cache.User so resolvers can write straight
// through to the metadata cache without a translation step.
type User = cache.User

// Resolver turns an Authorization header, or a user id, into a User.
type Resolver interface {
	// Auth resolves header, consulting the cache first and falling back to
	// the remote user service on a miss. A missing/inactive user returns
	// errtypes.UserRequired or errtypes.InvalidCredentials; an upstream
	// failure returns errtypes.AuthUpstream.
	Auth(ctx context.Context, header string) (User, error)

	// GetUser resolves a user by id, used when a prefix's owner must be
	// looked up independently of the calling header (e.g. on download,
	// where the caller is anonymous but the owner's traffic quota still
	// applies).
	GetUser(ctx context.Context, userID int64) (User, error)

	// Bypass reports whether header identifies this resolver's dev bypass
	// credential, in which case prefix-ownership checks are skipped.
	Bypass(header string) bool
}

// NewFunc is the function a resolver implementation registers at init time.
type NewFunc func(options map[string]interface{}) (Resolver, error)

// CacheWirer is implemented by resolvers that write through to a shared
// metadata cache rather than opening one of their own. Wired once at
// startup, after both the cache and auth registries have produced their
// instances.
type CacheWirer interface {
	WithCache(cache.Cache)
}
