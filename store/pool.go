// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pool is a fixed-size pool of sqlite connections with podium-standard
// pragmas. The session store is write-light (a handful of index updates
// per minute), so the pool stays small.
type pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// poolSize is deliberately small: one writer, a couple of readers for
// watcher refreshes.
const poolSize = 4

// openPool opens the database at path, creating it if needed, and
// applies pragmas plus the session schema to every connection.
func openPool(path string, logger *slog.Logger) (*pool, error) {
	if path == "" {
		return nil, fmt.Errorf("store: database path is required")
	}

	size := poolSize
	dsn := path
	if path == ":memory:" {
		// Each in-memory connection is an independent database; the
		// pool must not hand out more than one. sqlitex.NewPool
		// rejects the bare ":memory:" DSN, so use the URI form it
		// requires.
		size = 1
		dsn = "file::memory:?mode=memory&cache=shared"
	}

	inner, err := sqlitex.NewPool(dsn, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	logger.Info("session store opened", "path", path, "pool_size", size)

	return &pool{inner: inner, logger: logger, path: path}, nil
}

// take borrows a connection. The caller must put it back, typically
// via defer.
func (p *pool) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: take connection: %w", err)
	}
	return conn, nil
}

func (p *pool) put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

func (p *pool) close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("session store close error", "path", p.path, "error", err)
		return fmt.Errorf("store: closing %s: %w", p.path, err)
	}
	p.logger.Info("session store closed", "path", p.path)
	return nil
}

// prepareConnection applies pragmas and ensures the schema exists.
// Runs once per pooled connection on first use.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: applying schema: %w", err)
	}
	return nil
}

// schema holds one row per teaching session. Presentation mode is
// embedded rather than split out: the two fields callers race on
// (pres_active, pres_slide_index) share the row so a single UPDATE
// keeps them coherent.
const schema = `
CREATE TABLE IF NOT EXISTS teaching_sessions (
    id                   TEXT PRIMARY KEY,
    room_id              TEXT NOT NULL UNIQUE,
    created_at_ms        INTEGER NOT NULL,
    target_minutes       INTEGER NOT NULL DEFAULT 0,
    wrap_up_minutes      INTEGER NOT NULL DEFAULT 0,
    presentation_id      TEXT NOT NULL DEFAULT '',
    lesson_id            TEXT NOT NULL DEFAULT '',
    pres_active          INTEGER NOT NULL DEFAULT 0,
    pres_presentation_id TEXT NOT NULL DEFAULT '',
    pres_slide_index     INTEGER NOT NULL DEFAULT 0,
    pres_controlled_by   TEXT NOT NULL DEFAULT 'shared',
    pres_updated_by      TEXT NOT NULL DEFAULT '',
    ended_at_ms          INTEGER NOT NULL DEFAULT 0,
    end_reason           TEXT NOT NULL DEFAULT ''
);
`
