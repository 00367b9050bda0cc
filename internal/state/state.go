// Package state persists the gateway's local bookkeeping in an embedded
// SQLite database.
//
// Two tables carry the mirror's memory:
//
//   - changes records every changelist copied to Git, with the commit SHA1
//     it became. This is the local source of truth that "hmx verify" checks
//     commit messages against, and the fallback when the server-side
//     last-copied key is missing.
//
//   - sync_ops is an operation log of mirror runs, for "hmx status" and
//     post-incident archaeology.
//
// The database runs in WAL mode so status queries never block a sync.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the state database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the state database at path.
// The caller must Close() it.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pinging state database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	err := db.conn.Close()
	db.conn = nil
	if err != nil {
		return fmt.Errorf("closing state database: %w", err)
	}
	return nil
}

// InitSchema creates the schema if it doesn't exist. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS changes (
		change_num INTEGER PRIMARY KEY,
		sha1 TEXT NOT NULL,
		branch TEXT NOT NULL,
		copied_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_changes_sha1 ON changes(sha1);
	CREATE INDEX IF NOT EXISTS idx_changes_branch ON changes(branch);

	CREATE TABLE IF NOT EXISTS sync_ops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		changes_copied INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initializing state schema: %w", err)
	}
	return nil
}

// CopiedChange is one recorded changelist-to-commit mapping.
type CopiedChange struct {
	Change   int64
	SHA1     string
	Branch   string
	CopiedAt time.Time
}

// RecordChange records that a changelist was mirrored as a commit.
func (db *DB) RecordChange(ctx context.Context, change int64, sha1, branch string) error {
	query := `
	INSERT INTO changes (change_num, sha1, branch, copied_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(change_num) DO UPDATE SET
		sha1 = excluded.sha1,
		branch = excluded.branch,
		copied_at = excluded.copied_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		change, sha1, branch, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording change %d: %w", change, err)
	}
	return nil
}

// LastCopiedChange returns the highest changelist number recorded, or 0 if
// nothing was copied yet.
func (db *DB) LastCopiedChange(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	err := db.conn.QueryRowContext(ctx,
		"SELECT MAX(change_num) FROM changes").Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("querying last copied change: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return last.Int64, nil
}

// LookupChange returns the mapping for one changelist.
// Returns sql.ErrNoRows if the changelist was never copied.
func (db *DB) LookupChange(ctx context.Context, change int64) (*CopiedChange, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT change_num, sha1, branch, copied_at FROM changes WHERE change_num = ?", change)
	return scanCopiedChange(row)
}

// LookupSHA1 returns the mapping for one commit.
// Returns sql.ErrNoRows if the commit is not a mirrored commit.
func (db *DB) LookupSHA1(ctx context.Context, sha1 string) (*CopiedChange, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT change_num, sha1, branch, copied_at FROM changes WHERE sha1 = ?", sha1)
	return scanCopiedChange(row)
}

func scanCopiedChange(row *sql.Row) (*CopiedChange, error) {
	var cc CopiedChange
	var copiedAt string
	if err := row.Scan(&cc.Change, &cc.SHA1, &cc.Branch, &copiedAt); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, copiedAt); err == nil {
		cc.CopiedAt = t
	}
	return &cc, nil
}

// ChangeCount returns the number of changelists mirrored so far.
func (db *DB) ChangeCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM changes").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting changes: %w", err)
	}
	return count, nil
}

// BeginOp opens a sync_ops row and returns its id.
func (db *DB) BeginOp(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO sync_ops (started_at) VALUES (?)",
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("recording sync start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading sync op id: %w", err)
	}
	return id, nil
}

// FinishOp closes a sync_ops row. errMsg is empty for a clean run.
func (db *DB) FinishOp(ctx context.Context, id int64, changesCopied int, errMsg string) error {
	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sync_ops SET finished_at = ?, changes_copied = ?, error = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), changesCopied, errVal, id)
	if err != nil {
		return fmt.Errorf("recording sync finish: %w", err)
	}
	return nil
}

// SyncOp is one recorded mirror run.
type SyncOp struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    *time.Time
	ChangesCopied int
	Error         string
}

// RecentOps returns the most recent sync operations, newest first.
func (db *DB) RecentOps(ctx context.Context, limit int) ([]SyncOp, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, started_at, finished_at, changes_copied, error
		FROM sync_ops ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync ops: %w", err)
	}
	defer rows.Close()

	var ops []SyncOp
	for rows.Next() {
		var op SyncOp
		var started string
		var finished, errMsg sql.NullString
		if err := rows.Scan(&op.ID, &started, &finished, &op.ChangesCopied, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning sync op: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			op.StartedAt = t
		}
		if finished.Valid {
			if t, err := time.Parse(time.RFC3339, finished.String); err == nil {
				op.FinishedAt = &t
			}
		}
		op.Error = errMsg.String
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync ops: %w", err)
	}
	return ops, nil
}
