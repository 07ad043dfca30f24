package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fibermap/internal/codec"
	"fibermap/internal/repository"
)

const (
	metaRevision  = "topology.revision"
	metaSequences = "topology.sequences"
	metaSavedAt   = "topology.saved_at"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Pass ":memory:" for a private in-memory database.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
		if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS elements (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		parent_id TEXT,
		position INTEGER NOT NULL,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		installed_at TEXT NOT NULL,
		data JSON NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		op TEXT NOT NULL,
		element_id TEXT,
		revision INTEGER NOT NULL,
		detail TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(kind);
	CREATE INDEX IF NOT EXISTS idx_elements_parent ON elements(parent_id);
	CREATE INDEX IF NOT EXISTS idx_history_element ON history(element_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// LoadTopology reads every element row back into a document, in the order
// they were saved
func (r *Repository) LoadTopology(ctx context.Context) (*codec.Document, error) {
	doc := newDocument()

	rows, err := r.db.QueryContext(ctx, `SELECT `+elementColumns+` FROM elements ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row elementRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}
		if err := row.appendTo(doc); err != nil {
			return nil, fmt.Errorf("element %s: %w", row.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}

	if _, err := r.GetMeta(ctx, metaRevision, &doc.Revision); err != nil {
		return nil, err
	}
	if _, err := r.GetMeta(ctx, metaSequences, &doc.Sequences); err != nil {
		return nil, err
	}
	if _, err := r.GetMeta(ctx, metaSavedAt, &doc.ExportedAt); err != nil {
		return nil, err
	}

	return doc, nil
}

// SaveTopology replaces every stored element with the contents of doc
func (r *Repository) SaveTopology(ctx context.Context, doc *codec.Document) error {
	rows, err := documentRows(doc)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM elements`); err != nil {
		return fmt.Errorf("failed to clear elements: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO elements (`+elementColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := timeToText(time.Now())
	for _, row := range rows {
		args := append(row.insertArgs(), now)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert element %s: %w", row.ID, err)
		}
	}

	if err := setMeta(ctx, tx, metaRevision, doc.Revision); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaSequences, doc.Sequences); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaSavedAt, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMeta decodes the JSON value stored under key into target. It reports
// false when the key is absent.
func (r *Repository) GetMeta(ctx context.Context, key string, target any) (bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return false, fmt.Errorf("failed to decode metadata %s: %w", key, err)
	}
	return true, nil
}

// SetMeta stores value as JSON under key
func (r *Repository) SetMeta(ctx context.Context, key string, value any) error {
	return setMeta(ctx, r.db, key, value)
}

// AppendHistory records a committed mutation. A missing id or timestamp is
// filled in.
func (r *Repository) AppendHistory(ctx context.Context, entry repository.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO history (id, op, element_id, revision, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Op, stringToNull(entry.ElementID), int64(entry.Revision), stringToNull(entry.Detail), timeToText(entry.At))
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListHistory returns the newest entries first. A limit of zero or less
// returns everything.
func (r *Repository) ListHistory(ctx context.Context, limit int) ([]repository.HistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM history ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]repository.HistoryEntry, 0)
	for rows.Next() {
		var row historyRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entry, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode metadata %s: %w", key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), timeToText(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", key, err)
	}
	return nil
}
