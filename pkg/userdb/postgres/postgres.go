// Package postgres implements the usage ledger against PostgreSQL with
// database/sql and lib/pq. Every exported method runs a single statement, or
// a short sequence of independent statements against the pool (not inside a
// transaction), and is safe for concurrent use.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/qabel/blockserver/pkg/metrics"
	"github.com/qabel/blockserver/pkg/userdb"
)

// poolRetryDelay is the fixed backoff between retries of an operation that
// failed because the connection pool ran out of connections. Retries are
// unbounded in count but bounded in delay, since pool exhaustion is
// back-pressure, not a client-facing error.
const poolRetryDelay = 500 * time.Millisecond

// isPoolExhausted reports whether err is Postgres' "too many clients
// already" condition (class 53, insufficient resources).
func isPoolExhausted(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "53"
	}
	return false
}

// withPoolRetry runs op, retrying with poolRetryDelay between attempts while
// the connection pool is exhausted, until it succeeds, returns a non-pool
// error, or ctx is done.
func withPoolRetry(ctx context.Context, op func() error) error {
	for {
		err := op()
		if err == nil || !isPoolExhausted(err) {
			return err
		}
		metrics.DBPoolWaitSeconds.Add(poolRetryDelay.Seconds())
		select {
		case <-time.After(poolRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	quota BIGINT NOT NULL DEFAULT ` + quotaLiteral + `,
	size BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS prefixes (
	name VARCHAR(36) PRIMARY KEY,
	user_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS prefix_idx ON prefixes (user_id);
CREATE TABLE IF NOT EXISTS traffic (
	user_id INTEGER NOT NULL,
	traffic_month DATE NOT NULL CHECK (EXTRACT(DAY FROM traffic_month) = 1),
	traffic BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, traffic_month)
);
`

const quotaLiteral = "16777216"

// Clock returns the current time; tests substitute it to exercise month
// rollover without sleeping.
type Clock func() time.Time

// DB is a PostgreSQL-backed userdb.Database.
type DB struct {
	conn         *sql.DB
	clock        Clock
	defaultQuota int64
}

// Open connects to dsn, applies the schema idempotently and returns a DB.
func Open(dsn string, maxOpenConns, maxIdleConns int) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		conn.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		conn.SetMaxIdleConns(maxIdleConns)
	}

	db := &DB{conn: conn, clock: time.Now, defaultQuota: userdb.DefaultQuota}
	if err := db.init(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

// New wraps an already-open *sql.DB, applying the schema. Used by tests
// against an existing connection (e.g. one pointed at a disposable schema).
func New(conn *sql.DB, clock Clock) (*DB, error) {
	if clock == nil {
		clock = time.Now
	}
	db := &DB{conn: conn, clock: clock, defaultQuota: userdb.DefaultQuota}
	if err := db.init(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

// WithDefaultQuota overrides the quota assigned to users with no explicit
// quota on record, in place of userdb.DefaultQuota. Returns db for chaining.
func (db *DB) WithDefaultQuota(quota int64) *DB {
	if quota > 0 {
		db.defaultQuota = quota
	}
	return db
}

func (db *DB) init(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schema)
	return err
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func currentMonth(clock Clock) time.Time {
	now := clock().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (db *DB) AssertUser(ctx context.Context, userID int64) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO users (user_id, quota) VALUES ($1, $2)`, userID, db.defaultQuota)
	if err != nil && !isUniqueViolation(err) {
		return err
	}
	return nil
}

func (db *DB) CreatePrefix(ctx context.Context, userID int64) (string, error) {
	if err := db.AssertUser(ctx, userID); err != nil {
		return "", err
	}
	prefix := uuid.NewString()
	_, err := db.conn.ExecContext(ctx, `INSERT INTO prefixes (name, user_id) VALUES ($1, $2)`, prefix, userID)
	if err != nil {
		return "", err
	}
	return prefix, nil
}

func (db *DB) HasPrefix(ctx context.Context, userID int64, prefix string) (bool, error) {
	var dummy int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM prefixes WHERE user_id = $1 AND name = $2`, userID, prefix).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) GetPrefixOwner(ctx context.Context, prefix string) (int64, bool, error) {
	var userID int64
	err := db.conn.QueryRowContext(ctx, `SELECT user_id FROM prefixes WHERE name = $1`, prefix).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

func (db *DB) GetPrefixes(ctx context.Context, userID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM prefixes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefixes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		prefixes = append(prefixes, name)
	}
	return prefixes, rows.Err()
}

func (db *DB) GetSize(ctx context.Context, userID int64) (int64, error) {
	var size int64
	err := withPoolRetry(ctx, func() error {
		return db.conn.QueryRowContext(ctx, `SELECT size FROM users WHERE user_id = $1`, userID).Scan(&size)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, db.AssertUser(ctx, userID)
	}
	return size, err
}

func (db *DB) GetQuota(ctx context.Context, userID int64) (int64, error) {
	var quota int64
	err := withPoolRetry(ctx, func() error {
		return db.conn.QueryRowContext(ctx, `SELECT quota FROM users WHERE user_id = $1`, userID).Scan(&quota)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return db.defaultQuota, nil
	}
	return quota, err
}

func (db *DB) UpdateSize(ctx context.Context, prefix string, delta int64) error {
	return withPoolRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			UPDATE users u SET size = u.size + $1
			FROM prefixes p
			WHERE p.name = $2 AND u.user_id = p.user_id`, delta, prefix)
		return err
	})
}

func (db *DB) GetTraffic(ctx context.Context, userID int64) (int64, error) {
	var traffic int64
	err := withPoolRetry(ctx, func() error {
		return db.conn.QueryRowContext(ctx,
			`SELECT traffic FROM traffic WHERE user_id = $1 AND traffic_month = $2`,
			userID, currentMonth(db.clock)).Scan(&traffic)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return traffic, err
}

func (db *DB) GetTrafficByPrefix(ctx context.Context, prefix string) (int64, error) {
	userID, ok, err := db.GetPrefixOwner(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return db.GetTraffic(ctx, userID)
}

func (db *DB) UpdateTraffic(ctx context.Context, prefix string, delta int64) error {
	userID, ok, err := db.GetPrefixOwner(ctx, prefix)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return withPoolRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO traffic (user_id, traffic_month, traffic)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, traffic_month)
			DO UPDATE SET traffic = traffic.traffic + EXCLUDED.traffic`,
			userID, currentMonth(db.clock), delta)
		return err
	})
}

var _ userdb.Database = (*DB)(nil)
