package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// recorder captures every statement a completion transaction issues so tests
// can assert ordering, commits and rollbacks without a real database.
type recorder struct {
	statements []string
	failOn     string
	committed  bool
	rolledBack bool
}

func (r *recorder) record(query string) error {
	q := strings.Join(strings.Fields(query), " ")
	r.statements = append(r.statements, q)
	if r.failOn != "" && strings.Contains(q, r.failOn) {
		return fmt.Errorf("simulated failure on %q", r.failOn)
	}
	return nil
}

func (r *recorder) touched(fragment string) bool {
	for _, s := range r.statements {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

type stubConnector struct{ rec *recorder }

func (c *stubConnector) Connect(context.Context) (driver.Conn, error) {
	return &stubConn{rec: c.rec}, nil
}

func (c *stubConnector) Driver() driver.Driver { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open through the connector")
}

type stubConn struct{ rec *recorder }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements unused")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) { return &stubTx{rec: c.rec}, nil }

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return &stubTx{rec: c.rec}, nil
}

func (c *stubConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.rec.record(query); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.rec.record(query); err != nil {
		return nil, err
	}
	// the balance lookup misses so the create path runs; everything else
	// returning a row hands back a generated id
	if strings.Contains(query, "SELECT id FROM balances") {
		return &idRows{done: true}, nil
	}
	if strings.Contains(query, "RETURNING id") {
		return &idRows{id: 7}, nil
	}
	return &idRows{done: true}, nil
}

type stubTx struct{ rec *recorder }

func (t *stubTx) Commit() error {
	t.rec.committed = true
	return nil
}

func (t *stubTx) Rollback() error {
	t.rec.rolledBack = true
	return nil
}

type idRows struct {
	id   int64
	done bool
}

func (r *idRows) Columns() []string { return []string{"id"} }
func (r *idRows) Close() error      { return nil }

func (r *idRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.id
	return nil
}

func stubStore(rec *recorder) *Store {
	return &Store{db: sql.OpenDB(&stubConnector{rec: rec})}
}

func confirmedFixture() ConfirmedCompletion {
	paidAt := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	return ConfirmedCompletion{
		IncomingRequestID: 41,
		Transaction: models.PaymentTransactionRecord{
			UserID:    "64b000000000000000000001",
			ProductID: "64b000000000000000000002",
			OrderID:   "64b000000000000000000003",
			Amount:    1380,
			Type:      models.TransactionReceiving,
		},
		OrderRecord: models.OrderLedgerRecord{
			OrderID:       "64b000000000000000000003",
			ProductID:     "64b000000000000000000002",
			PaymentID:     "pay-1",
			PaymentSystem: models.PaymentSystemGazprom,
			PaymentAmount: 1500,
			Status:        models.OrderConfirmed,
			PaidAt:        &paidAt,
		},
		OwnerID:  "64b000000000000000000001",
		Currency: models.CurrencyRub,
		SourceBalance: &models.OwnerBalance{
			ID:      primitive.NewObjectID(),
			Type:    models.CurrencyRub,
			Balance: 100,
		},
		Schedule: &models.RecurrentQueueEntry{
			DateToExecute: paidAt.Add(7 * 24 * time.Hour),
			IsFirstPeriod: true,
			OrderID:       "64b000000000000000000003",
			PaymentSystem: models.PaymentSystemGazprom,
		},
	}
}

func TestCompleteConfirmedOrderStatementOrder(t *testing.T) {
	rec := &recorder{}
	store := stubStore(rec)

	if err := store.CompleteConfirmedOrder(context.Background(), confirmedFixture()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !rec.committed {
		t.Fatal("transaction not committed")
	}
	if rec.rolledBack {
		t.Fatal("committed transaction also rolled back")
	}

	wantOrder := []string{
		"payment_transactions",
		"INSERT INTO orders",
		"incoming_requests",
		"SELECT id FROM balances",
		"INSERT INTO balances",
		"recurrent_payments_queue",
		"balance_update_queue",
	}
	if len(rec.statements) != len(wantOrder) {
		t.Fatalf("statements = %d, want %d:\n%s",
			len(rec.statements), len(wantOrder), strings.Join(rec.statements, "\n"))
	}
	for i, fragment := range wantOrder {
		if !strings.Contains(rec.statements[i], fragment) {
			t.Errorf("statement %d = %q, want it to touch %q", i, rec.statements[i], fragment)
		}
	}
}

func TestCompleteConfirmedOrderRollsBackOnQueueFailure(t *testing.T) {
	rec := &recorder{failOn: "recurrent_payments_queue"}
	store := stubStore(rec)

	err := store.CompleteConfirmedOrder(context.Background(), confirmedFixture())
	if !faults.IsKind(err, faults.TransactionFailed) {
		t.Fatalf("expected TransactionFailed, got %v", err)
	}
	if rec.committed {
		t.Fatal("failed transaction committed")
	}
	if !rec.rolledBack {
		t.Fatal("failed transaction not rolled back")
	}
	// the later statements never run once the queue insert fails
	if rec.touched("balance_update_queue") {
		t.Error("balance update enqueued despite the rollback")
	}
}

func TestCompleteConfirmedOrderRollsBackOnBalanceQueueFailure(t *testing.T) {
	rec := &recorder{failOn: "balance_update_queue"}
	store := stubStore(rec)

	err := store.CompleteConfirmedOrder(context.Background(), confirmedFixture())
	if !faults.IsKind(err, faults.TransactionFailed) {
		t.Fatalf("expected TransactionFailed, got %v", err)
	}
	if rec.committed {
		t.Fatal("failed transaction committed")
	}
	if !rec.rolledBack {
		t.Fatal("failed transaction not rolled back")
	}
	// the final insert failing undoes every statement before it
	for _, fragment := range []string{"payment_transactions", "INSERT INTO orders", "recurrent_payments_queue"} {
		if !rec.touched(fragment) {
			t.Errorf("statement touching %q never ran:\n%s", fragment, strings.Join(rec.statements, "\n"))
		}
	}
}

func TestCompleteRejectedOrderTouchesNoBalances(t *testing.T) {
	rec := &recorder{}
	store := stubStore(rec)

	err := store.CompleteRejectedOrder(context.Background(), RejectedCompletion{
		IncomingRequestID: 42,
		Transaction: models.PaymentTransactionRecord{
			UserID:    "64b000000000000000000001",
			ProductID: "64b000000000000000000002",
			OrderID:   "64b000000000000000000003",
			Amount:    0,
			Type:      models.TransactionReceiving,
		},
		OrderRecord: models.OrderLedgerRecord{
			OrderID:       "64b000000000000000000003",
			ProductID:     "64b000000000000000000002",
			PaymentID:     "pay-1",
			PaymentSystem: models.PaymentSystemGazprom,
			PaymentAmount: 1500,
			Status:        models.OrderRejected,
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !rec.committed {
		t.Fatal("transaction not committed")
	}
	if rec.touched("balances") || rec.touched("recurrent_payments_queue") {
		t.Errorf("rejected completion touched balances or the queue:\n%s",
			strings.Join(rec.statements, "\n"))
	}
}
