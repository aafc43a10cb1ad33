package toolscribe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/toolscribe/toolscribe/observability"
)

// pq error code for unique_violation
const pqUniqueViolation = "23505"

// PostgresInvocationStore is a PostgreSQL implementation of InvocationStore.
type PostgresInvocationStore struct {
	db     *sql.DB
	logger observability.Logger
}

// NewPostgresInvocationStore creates the store and initializes its schema.
func NewPostgresInvocationStore(db *sql.DB, logger observability.Logger) (*PostgresInvocationStore, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	s := &PostgresInvocationStore{
		db:     db,
		logger: logger,
	}

	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return s, nil
}

func (s *PostgresInvocationStore) initSchema(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS invocations (
		uuid UUID PRIMARY KEY,
		tool TEXT NOT NULL,
		arguments JSONB NOT NULL DEFAULT '{}',
		result TEXT NOT NULL DEFAULT '',
		is_error BOOLEAN NOT NULL DEFAULT FALSE,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);`

	createToolIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations (tool);`

	createTimestampIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_invocations_created_at ON invocations (created_at);`

	for _, stmt := range []string{createTableSQL, createToolIndexSQL, createTimestampIndexSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	s.logger.Debug("Invocation history schema ready")
	return nil
}

// RecordInvocation persists one completed tool call.
func (s *PostgresInvocationStore) RecordInvocation(ctx context.Context, inv Invocation) error {
	arguments := string(inv.Arguments)
	if arguments == "" {
		arguments = "{}"
	}

	insertSQL := `
	INSERT INTO invocations (uuid, tool, arguments, result, is_error, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := s.db.ExecContext(ctx, insertSQL,
		inv.ID.String(), inv.Tool, arguments, inv.Result,
		inv.IsError, inv.Duration.Milliseconds(), inv.CreatedAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("invocation %s already recorded: %w", inv.ID, err)
		}
		return fmt.Errorf("failed to insert invocation: %w", err)
	}
	return nil
}

// ListInvocations returns recorded calls, newest first.
func (s *PostgresInvocationStore) ListInvocations(ctx context.Context, tool string, limit int) ([]Invocation, error) {
	querySQL := `
	SELECT uuid, tool, arguments, result, is_error, duration_ms, created_at
	FROM invocations`
	args := make([]interface{}, 0, 2)

	if tool != "" {
		args = append(args, tool)
		querySQL += fmt.Sprintf(` WHERE tool = $%d`, len(args))
	}
	querySQL += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		querySQL += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	return scanInvocations(rows)
}

// PurgeInvocations deletes records created before the given time.
func (s *PostgresInvocationStore) PurgeInvocations(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM invocations WHERE created_at < $1;`, before.UTC())
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
