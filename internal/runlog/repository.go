package runlog

import (
	"database/sql"
	"fmt"
	"time"

	"imageroller/internal/database"
)

// Repository defines the persistence interface for run entries.
type Repository interface {
	Save(entry *Entry) error
	List(limit int) ([]Entry, error)
	ListByServer(serverID string, limit int) ([]Entry, error)
	Prune(olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the run-history repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS run_log (
            id             INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id         TEXT    NOT NULL,
            timestamp      TEXT    NOT NULL,
            server_id      TEXT    NOT NULL,
            server_name    TEXT    NOT NULL DEFAULT '',
            outcome        TEXT    NOT NULL,
            created_image  TEXT    NOT NULL DEFAULT '',
            deleted_count  INTEGER NOT NULL DEFAULT 0,
            failed_deletes INTEGER NOT NULL DEFAULT 0,
            detail         TEXT    NOT NULL DEFAULT '',
            duration_ms    INTEGER NOT NULL DEFAULT 0
        );
        CREATE INDEX IF NOT EXISTS idx_run_log_timestamp ON run_log(timestamp);
        CREATE INDEX IF NOT EXISTS idx_run_log_run ON run_log(run_id);
        CREATE INDEX IF NOT EXISTS idx_run_log_server ON run_log(server_id);
    `
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("runlog: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new run entry.
func (r *SQLiteRepository) Save(entry *Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	result, err := r.db.Exec(`
        INSERT INTO run_log (run_id, timestamp, server_id, server_name, outcome, created_image, deleted_count, failed_deletes, detail, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Timestamp.Format(time.RFC3339Nano), entry.ServerID, entry.ServerName,
		entry.Outcome, entry.CreatedImage, entry.DeletedCount, entry.FailedDeletes, entry.Detail, entry.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("runlog: insert failed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("runlog: failed to get last insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns the most recent n run entries.
func (r *SQLiteRepository) List(limit int) ([]Entry, error) {
	rows, err := r.db.Query(`
        SELECT id, run_id, timestamp, server_id, server_name, outcome, created_image,
               deleted_count, failed_deletes, detail, duration_ms
        FROM run_log ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListByServer returns the most recent n run entries for one server.
func (r *SQLiteRepository) ListByServer(serverID string, limit int) ([]Entry, error) {
	rows, err := r.db.Query(`
        SELECT id, run_id, timestamp, server_id, server_name, outcome, created_image,
               deleted_count, failed_deletes, detail, duration_ms
        FROM run_log WHERE server_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, serverID, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Prune deletes entries older than the given duration.
func (r *SQLiteRepository) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := r.db.Exec(`DELETE FROM run_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("runlog: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var timestampStr string
		err := rows.Scan(
			&entry.ID, &entry.RunID, &timestampStr, &entry.ServerID, &entry.ServerName,
			&entry.Outcome, &entry.CreatedImage, &entry.DeletedCount, &entry.FailedDeletes,
			&entry.Detail, &entry.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("runlog: scan failed: %w", err)
		}
		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
