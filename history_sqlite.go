package toolscribe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/toolscribe/toolscribe/observability"
)

// SQLiteInvocationStore is an SQLite implementation of InvocationStore.
// Callers own the *sql.DB and must import the mattn/go-sqlite3 driver.
type SQLiteInvocationStore struct {
	db     *sql.DB
	logger observability.Logger
}

// NewSQLiteInvocationStore creates the store and initializes its schema.
func NewSQLiteInvocationStore(db *sql.DB, logger observability.Logger) (*SQLiteInvocationStore, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	s := &SQLiteInvocationStore{
		db:     db,
		logger: logger,
	}

	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteInvocationStore) initSchema(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS invocations (
		uuid TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		arguments TEXT DEFAULT '{}',
		result TEXT DEFAULT '',
		is_error INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`

	createToolIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations (tool);`

	createTimestampIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_invocations_created_at ON invocations (created_at);`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema init: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{createTableSQL, createToolIndexSQL, createTimestampIndexSQL} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("Invocation history schema ready")
	return nil
}

// RecordInvocation persists one completed tool call.
func (s *SQLiteInvocationStore) RecordInvocation(ctx context.Context, inv Invocation) error {
	arguments := string(inv.Arguments)
	if arguments == "" {
		arguments = "{}"
	}

	insertSQL := `
	INSERT INTO invocations (uuid, tool, arguments, result, is_error, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);`

	_, err := s.db.ExecContext(ctx, insertSQL,
		inv.ID.String(), inv.Tool, arguments, inv.Result,
		inv.IsError, inv.Duration.Milliseconds(), inv.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert invocation: %w", err)
	}
	return nil
}

// ListInvocations returns recorded calls, newest first.
func (s *SQLiteInvocationStore) ListInvocations(ctx context.Context, tool string, limit int) ([]Invocation, error) {
	querySQL := `
	SELECT uuid, tool, arguments, result, is_error, duration_ms, created_at
	FROM invocations`
	args := make([]interface{}, 0, 2)

	if tool != "" {
		querySQL += ` WHERE tool = ?`
		args = append(args, tool)
	}
	querySQL += ` ORDER BY created_at DESC`
	if limit > 0 {
		querySQL += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	return scanInvocations(rows)
}

// PurgeInvocations deletes records created before the given time.
func (s *SQLiteInvocationStore) PurgeInvocations(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM invocations WHERE created_at < ?;`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge invocations: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged invocations: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"removed": removed,
	}).Debug("Purged invocation records")
	return removed, nil
}

func scanInvocations(rows *sql.Rows) ([]Invocation, error) {
	var invocations []Invocation
	for rows.Next() {
		var (
			idStr      string
			arguments  string
			durationMS int64
			inv        Invocation
		)
		if err := rows.Scan(&idStr, &inv.Tool, &arguments, &inv.Result,
			&inv.IsError, &durationMS, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invocation row: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid invocation id %q: %w", idStr, err)
		}
		inv.ID = id
		inv.Arguments = []byte(arguments)
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invocation rows: %w", err)
	}
	return invocations, nil
}
