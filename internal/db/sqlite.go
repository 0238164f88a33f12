// Package db opens the SQLite commit-log database and migrates its schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Options tunes a commit-log connection.
type Options struct {
	BusyTimeout time.Duration // wait on a locked database file (default 5s)
	PingTimeout time.Duration // bound on the initial connection check (default 5s)
}

func (o Options) withDefaults() Options {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// Open opens path with a single connection. Transactions take the write
// lock when they begin, so a version check and the insert that follows it
// can never interleave with another writer, in this process or another.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("sqlite3", buildDSN(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// OpenCommitLog opens path and applies pending migrations.
func OpenCommitLog(ctx context.Context, path string) (*sql.DB, error) {
	db, err := Open(ctx, path, Options{})
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

func buildDSN(path string, busy time.Duration) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", strconv.FormatInt(busy.Milliseconds(), 10))
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}
