package store

import (
	"context"
	"database/sql"
	"fmt"
)

const ddl = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS entries (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    key        TEXT NOT NULL UNIQUE,
    source     TEXT NOT NULL,
    seq        INTEGER NOT NULL DEFAULT 0,
    content    TEXT NOT NULL,
    indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// vecDDL sizes the vec0 table; sqlite-vec needs the dimension up front.
const vecDDL = `CREATE VIRTUAL TABLE IF NOT EXISTS vec_entries USING vec0(
    entry_id INTEGER PRIMARY KEY,
    embedding float[%d]
)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// initSchema creates the tables if they don't exist.
func initSchema(ctx context.Context, db execer, dims int) error {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(vecDDL, dims))
	return err
}
