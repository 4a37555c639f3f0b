package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// DueBatch is a claimed slice of the recurrence queue. The selected rows stay
// row-locked until Commit or Rollback, so an overlapping executor run skips
// them instead of double-charging.
type DueBatch struct {
	Entries []models.RecurrentQueueEntry
	tx      *sql.Tx
}

// ClaimDueRecurrentPayments selects up to limit due entries ordered by
// primary key with FOR UPDATE SKIP LOCKED. Offset paging over a table the
// same loop deletes from is unsafe; key-ordered claiming is not.
func (s *Store) ClaimDueRecurrentPayments(ctx context.Context, now time.Time, limit int) (*DueBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, date_to_execute, is_first_period, order_id, payment_system, metadata, created_at
		FROM recurrent_payments_queue
		WHERE date_to_execute <= $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to select due recurrent payments: %w", err)
	}
	defer rows.Close()

	batch := &DueBatch{tx: tx}
	for rows.Next() {
		var (
			entry   models.RecurrentQueueEntry
			rawMeta []byte
		)
		if err := rows.Scan(&entry.ID, &entry.DateToExecute, &entry.IsFirstPeriod,
			&entry.OrderID, &entry.PaymentSystem, &rawMeta, &entry.CreatedAt); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to scan recurrent queue entry: %w", err)
		}
		if err := json.Unmarshal(rawMeta, &entry.Metadata); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to decode metadata of queue entry %d: %w", entry.ID, err)
		}
		batch.Entries = append(batch.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to iterate due recurrent payments: %w", err)
	}
	return batch, nil
}

// Delete removes one consumed or discarded entry within the claim.
func (b *DueBatch) Delete(ctx context.Context, entryID int64) error {
	_, err := b.tx.ExecContext(ctx, `
		DELETE FROM recurrent_payments_queue WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete recurrent queue entry %d: %w", entryID, err)
	}
	return nil
}

// Commit releases the claim, making deletions durable.
func (b *DueBatch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit claim transaction: %w", err)
	}
	return nil
}

// Rollback abandons the claim; undeleted entries become visible again.
func (b *DueBatch) Rollback() {
	b.tx.Rollback()
}
