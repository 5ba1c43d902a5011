package acct

import (
	"context"
	"database/sql"
)

// schema holds the journal DDL. Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS boots (
		id         TEXT PRIMARY KEY,
		apps       INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		halted_at  TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS exits (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		boot_id   TEXT NOT NULL REFERENCES boots(id),
		task_id   INTEGER NOT NULL,
		name      TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		start_ms  INTEGER NOT NULL,
		end_ms    INTEGER NOT NULL,
		syscalls  TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exits_boot_id ON exits(boot_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
