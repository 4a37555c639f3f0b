package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// ConfirmedCompletion carries everything the atomic settlement write needs.
// SourceBalance seeds a ledger balance row when the owner has none yet for
// the currency; Schedule is non-nil when the product recurs.
type ConfirmedCompletion struct {
	IncomingRequestID int64
	Transaction       models.PaymentTransactionRecord
	OrderRecord       models.OrderLedgerRecord
	OwnerID           string
	Currency          models.Currency
	SourceBalance     *models.OwnerBalance
	Schedule          *models.RecurrentQueueEntry
}

// RejectedCompletion settles a rejected payment attempt: a zero-amount
// transaction and a Rejected order mirror, nothing else.
type RejectedCompletion struct {
	IncomingRequestID int64
	Transaction       models.PaymentTransactionRecord
	OrderRecord       models.OrderLedgerRecord
}

// CompleteConfirmedOrder runs the settlement in one SERIALIZABLE transaction:
// payment transaction, order ledger record, request status, balance
// resolve-or-create, optional recurrence queue entry, balance update queue
// entry. SERIALIZABLE isolation plus the (user_id, currency) uniqueness
// constraint defends first-time balance creation against concurrent
// completions for the same owner; a conflict rolls everything back and the
// request stays Received.
func (s *Store) CompleteConfirmedOrder(ctx context.Context, p ConfirmedCompletion) error {
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		trxID, err := insertPaymentTransaction(ctx, tx, p.Transaction)
		if err != nil {
			return err
		}
		if err := insertOrderRecord(ctx, tx, p.OrderRecord); err != nil {
			return err
		}
		if err := markRequestProcessed(ctx, tx, p.IncomingRequestID); err != nil {
			return err
		}

		balanceID, err := resolveBalance(ctx, tx, p.OwnerID, p.Currency, p.SourceBalance)
		if err != nil {
			return err
		}

		if p.Schedule != nil {
			if err := insertRecurrentQueueEntry(ctx, tx, *p.Schedule); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO balance_update_queue (balance_id, amount, operation, payment_transaction_id)
			VALUES ($1, $2, $3, $4)`,
			balanceID, p.Transaction.Amount, models.BalanceIncrement, trxID)
		if err != nil {
			return fmt.Errorf("failed to insert balance update queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return faults.Wrap(faults.TransactionFailed, err, "confirmed completion transaction failed")
	}
	return nil
}

// CompleteRejectedOrder atomically records the rejection: the request never
// returns to Received and no balance or recurrence rows are touched.
func (s *Store) CompleteRejectedOrder(ctx context.Context, p RejectedCompletion) error {
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		if _, err := insertPaymentTransaction(ctx, tx, p.Transaction); err != nil {
			return err
		}
		if err := insertOrderRecord(ctx, tx, p.OrderRecord); err != nil {
			return err
		}
		return markRequestProcessed(ctx, tx, p.IncomingRequestID)
	})
	if err != nil {
		return faults.Wrap(faults.TransactionFailed, err, "rejected completion transaction failed")
	}
	return nil
}

func (s *Store) withSerializableTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertPaymentTransaction(ctx context.Context, tx *sql.Tx, rec models.PaymentTransactionRecord) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO payment_transactions (user_id, product_id, order_id, amount, pan, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.UserID, rec.ProductID, rec.OrderID, rec.Amount, rec.Pan, rec.Type).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment transaction: %w", err)
	}
	return id, nil
}

func insertOrderRecord(ctx context.Context, tx *sql.Tx, rec models.OrderLedgerRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (doc_order_id, doc_product_id, payment_id, payment_system, payment_amount, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.OrderID, rec.ProductID, rec.PaymentID, rec.PaymentSystem,
		rec.PaymentAmount, rec.Status, rec.PaidAt)
	if err != nil {
		return fmt.Errorf("failed to insert order ledger record: %w", err)
	}
	return nil
}

func markRequestProcessed(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE incoming_requests SET status = $1, updated_at = now() WHERE id = $2`,
		models.IncomingRequestProcessed, id)
	if err != nil {
		return fmt.Errorf("failed to mark incoming request %d processed: %w", id, err)
	}
	return nil
}

// resolveBalance reuses the owner's balance row for the currency or creates
// one from the document-store balance snapshot.
func resolveBalance(ctx context.Context, tx *sql.Tx, ownerID string, currency models.Currency, source *models.OwnerBalance) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM balances WHERE user_id = $1 AND currency = $2 LIMIT 1`,
		ownerID, currency).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to select balance: %w", err)
	}

	if source == nil {
		return 0, fmt.Errorf("no balance row for owner %s and no source balance to create one", ownerID)
	}

	var cardID interface{}
	if source.CardID != "" {
		cardID = source.CardID
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO balances (doc_id, value, currency, user_id, card_id, verification_hash, withdrawal_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		source.ID.Hex(), source.Balance, currency, ownerID, cardID,
		source.BalanceHash, source.WithdrawalAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert balance: %w", err)
	}
	return id, nil
}

func insertRecurrentQueueEntry(ctx context.Context, tx *sql.Tx, entry models.RecurrentQueueEntry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode recurrent queue metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO recurrent_payments_queue (date_to_execute, is_first_period, order_id, payment_system, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.DateToExecute, entry.IsFirstPeriod, entry.OrderID, entry.PaymentSystem, meta)
	if err != nil {
		return fmt.Errorf("failed to insert recurrent queue entry: %w", err)
	}
	return nil
}
