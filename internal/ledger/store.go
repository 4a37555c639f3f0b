// Package ledger is the ACID datastore of record for money movements:
// incoming webhook requests, settled transactions, balances and the
// recurrence queue live here.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Store wraps the Postgres connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres with pool settings tuned for many short
// transactions.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established", map[string]interface{}{
		"max_open_conns":    25,
		"max_idle_conns":    25,
		"conn_max_lifetime": "5m",
	})
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// EnsureSchema applies the embedded schema. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	raw, err := schemaFS.ReadFile("schema/postgres.sql")
	if err != nil {
		return fmt.Errorf("failed to read embedded schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(raw)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// IncomingRequestByID loads one incoming request row.
func (s *Store) IncomingRequestByID(ctx context.Context, id int64) (*models.IncomingRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, payload, metadata, status, payment_system, handler_destination, created_at, updated_at
		FROM incoming_requests
		WHERE id = $1`, id)

	var (
		req         models.IncomingRequest
		rawPayload  []byte
		rawMetadata []byte
	)
	err := row.Scan(&req.ID, &rawPayload, &rawMetadata, &req.Status,
		&req.PaymentSystem, &req.Destination, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select incoming request %d: %w", id, err)
	}

	if err := json.Unmarshal(rawPayload, &req.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of incoming request %d: %w", id, err)
	}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &req.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of incoming request %d: %w", id, err)
		}
	}
	return &req, nil
}

// SetIncomingRequestStatus updates the request status outside of any
// completion transaction (signature failures, preparation processing).
func (s *Store) SetIncomingRequestStatus(ctx context.Context, id int64, status models.IncomingRequestStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE incoming_requests SET status = $1, updated_at = now() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to update incoming request %d status: %w", id, err)
	}
	return nil
}

// IsConflict reports whether err is a serialization failure or a unique
// violation, both of which make the completion transaction retryable by
// re-invoking the webhook processing.
func IsConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "23505"
	}
	return false
}
