// Package userdb defines the usage ledger contract: prefix ownership,
// cumulative storage usage, and monthly download traffic, all backed by a
// relational database.
package userdb

import "context"

// DefaultQuota is the storage quota, in bytes, assigned to a user with no
// explicit quota on record.
const DefaultQuota = 2 * 1024 * 1024 * 8

// Database is the usage ledger contract.
type Database interface {
	// AssertUser ensures a row exists for userID; it is not an error for one
	// to already exist.
	AssertUser(ctx context.Context, userID int64) error

	// CreatePrefix allocates a fresh UUID prefix owned by userID.
	CreatePrefix(ctx context.Context, userID int64) (string, error)

	// HasPrefix reports whether userID owns prefix.
	HasPrefix(ctx context.Context, userID int64, prefix string) (bool, error)

	// GetPrefixOwner returns the user id owning prefix, or ok=false if the
	// prefix is unknown.
	GetPrefixOwner(ctx context.Context, prefix string) (userID int64, ok bool, err error)

	// GetPrefixes lists every prefix owned by userID.
	GetPrefixes(ctx context.Context, userID int64) ([]string, error)

	// GetSize returns userID's cumulative stored bytes.
	GetSize(ctx context.Context, userID int64) (int64, error)

	// GetQuota returns userID's storage quota, defaulting to DefaultQuota.
	GetQuota(ctx context.Context, userID int64) (int64, error)

	// UpdateSize applies delta to the size of the user owning prefix.
	UpdateSize(ctx context.Context, prefix string, delta int64) error

	// GetTraffic returns userID's download traffic for the current month.
	GetTraffic(ctx context.Context, userID int64) (int64, error)

	// GetTrafficByPrefix is GetTraffic resolved through prefix's owner.
	GetTrafficByPrefix(ctx context.Context, prefix string) (int64, error)

	// UpdateTraffic adds delta bytes to the current month's traffic of the
	// user owning prefix.
	UpdateTraffic(ctx context.Context, prefix string, delta int64) error
}
