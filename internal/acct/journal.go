// Package acct keeps a process-accounting journal: one row per boot and one
// per task exit, in SQLite.
package acct

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ember/kernel"
)

// Boot is one run of the kernel.
type Boot struct {
	ID        string
	Apps      int
	StartedAt time.Time
	HaltedAt  *time.Time
}

// Exit is the accounting record of one finished task.
type Exit struct {
	BootID   string
	TaskID   int
	Name     string
	ExitCode int32
	StartMs  uint64 // ms since boot at task creation
	EndMs    uint64 // ms since boot at exit
	Syscalls map[int]uint32
}

// Total returns the number of syscalls the task made.
func (e Exit) Total() uint64 {
	var n uint64
	for _, c := range e.Syscalls {
		n += uint64(c)
	}
	return n
}

// Journal is the accounting store.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the journal at path and migrates it.
// Use ":memory:" for an in-memory journal (useful in tests).
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	j := &Journal{db: db, logger: logger.With("component", "acct")}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartBoot records a new boot and returns its id.
func (j *Journal) StartBoot(ctx context.Context, apps int) (string, error) {
	id := "boot_" + uuid.New().String()
	j.logger.Debug("sql", "op", "insert", "table", "boots", "id", id)
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO boots (id, apps, started_at) VALUES (?, ?, ?)`,
		id, apps, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert boot: %w", err)
	}
	return id, nil
}

// HaltBoot marks boot id as halted.
func (j *Journal) HaltBoot(ctx context.Context, id string) error {
	j.logger.Debug("sql", "op", "update", "table", "boots", "id", id)
	_, err := j.db.ExecContext(ctx,
		`UPDATE boots SET halted_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// RecordExit stores the exit of snap, which ended at endMs.
func (j *Journal) RecordExit(ctx context.Context, bootID string, snap kernel.TaskSnapshot, endMs uint64) error {
	counts := make(map[int]uint32)
	for id, n := range snap.SyscallTimes {
		if n != 0 {
			counts[id] = n
		}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal syscalls: %w", err)
	}

	j.logger.Debug("sql", "op", "insert", "table", "exits", "boot", bootID, "task", snap.ID)
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO exits (boot_id, task_id, name, exit_code, start_ms, end_ms, syscalls)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bootID, snap.ID, snap.Name, snap.ExitCode, int64(snap.StartTime), int64(endMs), string(countsJSON))
	if err != nil {
		return fmt.Errorf("insert exit: %w", err)
	}
	return nil
}

// Boots lists every boot, newest first.
func (j *Journal) Boots(ctx context.Context) ([]Boot, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, apps, started_at, halted_at FROM boots ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Boot
	for rows.Next() {
		var b Boot
		var started string
		var halted sql.NullString
		if err := rows.Scan(&b.ID, &b.Apps, &started, &halted); err != nil {
			return nil, err
		}
		if b.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if halted.Valid {
			t, err := time.Parse(time.RFC3339Nano, halted.String)
			if err != nil {
				return nil, fmt.Errorf("parse halted_at: %w", err)
			}
			b.HaltedAt = &t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Exits lists the exits of boot id in exit order.
func (j *Journal) Exits(ctx context.Context, bootID string) ([]Exit, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT boot_id, task_id, name, exit_code, start_ms, end_ms, syscalls
		 FROM exits WHERE boot_id = ? ORDER BY id`, bootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exit
	for rows.Next() {
		var e Exit
		var start, end int64
		var countsJSON string
		if err := rows.Scan(&e.BootID, &e.TaskID, &e.Name, &e.ExitCode, &start, &end, &countsJSON); err != nil {
			return nil, err
		}
		e.StartMs, e.EndMs = uint64(start), uint64(end)
		if err := json.Unmarshal([]byte(countsJSON), &e.Syscalls); err != nil {
			return nil, fmt.Errorf("unmarshal syscalls: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
