package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"sheger-walk-admin/internal/models"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the audit log database.
type DB struct {
	conn *sql.DB
}

// NewDB opens the database and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS admin_actions (
			id TEXT PRIMARY KEY,
			resource TEXT NOT NULL,
			action TEXT NOT NULL,
			target_id TEXT NOT NULL DEFAULT '',
			succeeded INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_admin_actions_occurred_at ON admin_actions(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_admin_actions_resource ON admin_actions(resource, occurred_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// InsertAudit records one admin action. A missing id or timestamp is filled
// in and the stored entry is returned.
func (db *DB) InsertAudit(ctx context.Context, entry models.AuditEntry) (models.AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	entry.OccurredAt = entry.OccurredAt.UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO admin_actions (id, resource, action, target_id, succeeded, message, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Resource,
		entry.Action,
		entry.TargetID,
		entry.Succeeded,
		entry.Message,
		entry.OccurredAt.Format(timeLayout),
	)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return entry, nil
}

// AuditFilter narrows ListAudit. Zero fields are ignored.
type AuditFilter struct {
	Resource string
	Since    time.Time
	Limit    int
}

// ListAudit returns entries newest first.
func (db *DB) ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditEntry, error) {
	query := `SELECT id, resource, action, target_id, succeeded, message, occurred_at
		FROM admin_actions WHERE 1 = 1`
	var args []interface{}

	if f.Resource != "" {
		query += " AND resource = ?"
		args = append(args, f.Resource)
	}
	if !f.Since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	query += " ORDER BY occurred_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.Resource, &e.Action, &e.TargetID, &e.Succeeded, &e.Message, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.OccurredAt, err = time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse occurred_at: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
