package recurrent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/audit"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/metrics"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// Claim is the open row-lock over a batch of due queue entries.
type Claim interface {
	Delete(ctx context.Context, entryID int64) error
	Commit() error
	Rollback()
}

// Queue hands out due queue entries under a claim.
type Queue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.RecurrentQueueEntry, Claim, error)
}

// LedgerQueue adapts the ledger store to the Queue interface.
type LedgerQueue struct {
	Store *ledger.Store
}

func (q LedgerQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.RecurrentQueueEntry, Claim, error) {
	batch, err := q.Store.ClaimDueRecurrentPayments(ctx, now, limit)
	if err != nil {
		return nil, nil, err
	}
	return batch.Entries, batch, nil
}

// Docs is the document-store surface the executor needs.
type Docs interface {
	FindOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	InsertOrder(ctx context.Context, order *models.Order) error
}

// Gateway issues the outbound charge-initiation call.
type Gateway interface {
	Call(ctx context.Context, method, url string) CallResult
}

// Config carries the URL material for initiation calls.
type Config struct {
	InitiateURL string
	MerchID     string
	MainURL     string
	FailURL     string
	BatchSize   int
}

// Executor consumes due recurrence queue entries and re-issues charges.
// Exactly one instance must run against the queue at a time; the claim's
// row locks make an accidental overlap skip rather than double-charge.
type Executor struct {
	queue   Queue
	docs    Docs
	gateway Gateway
	auditor audit.Writer
	cfg     Config
	now     func() time.Time
}

func NewExecutor(queue Queue, docs Docs, gateway Gateway, auditor audit.Writer, cfg Config) *Executor {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	return &Executor{
		queue:   queue,
		docs:    docs,
		gateway: gateway,
		auditor: auditor,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run performs one polling pass over the due entries.
func (e *Executor) Run(ctx context.Context) error {
	entries, claim, err := e.queue.ClaimDue(ctx, e.now(), e.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim due entries: %w", err)
	}
	defer claim.Rollback()

	for _, entry := range entries {
		outcome := e.processEntry(ctx, claim, entry)
		metrics.RecurrentEntriesProcessedTotal.WithLabelValues(outcome).Inc()
	}
	return claim.Commit()
}

// processEntry handles one due entry. A stale reference (missing order or
// product, inactive product, recurrence disabled, payment method removed)
// deletes the entry without retry. An initiation failure keeps the entry for
// the next pass; the freshly created order is left behind for cleanup.
func (e *Executor) processEntry(ctx context.Context, claim Claim, entry models.RecurrentQueueEntry) string {
	orderID, err := primitive.ObjectIDFromHex(strings.TrimSpace(entry.OrderID))
	if err != nil {
		return e.drop(ctx, claim, entry, "entry references a malformed order id")
	}

	order, err := e.docs.FindOrder(ctx, orderID)
	if err != nil {
		return e.keep(entry, err)
	}
	if order == nil {
		return e.drop(ctx, claim, entry, "parent order is gone")
	}

	product, err := e.docs.FindProduct(ctx, order.Product)
	if err != nil {
		return e.keep(entry, err)
	}
	if !e.stillBillable(product) {
		return e.drop(ctx, claim, entry, "product no longer billable")
	}

	newOrder := e.cloneOrder(order, product, entry.Metadata.TrxID)
	if err := e.docs.InsertOrder(ctx, newOrder); err != nil {
		return e.keep(entry, err)
	}

	initiateURL := e.buildPaymentURL(newOrder, order, product)
	result := e.gateway.Call(ctx, http.MethodGet, initiateURL)
	if !result.OK {
		auditErr := e.auditor.Write(ctx, audit.RecurringPaymentInitiationFailed, audit.Payload{
			"queueEntryId": entry.ID,
			"orderId":      newOrder.ID.Hex(),
			"paymentId":    newOrder.Payment.ID,
			"statusCode":   result.StatusCode,
		})
		if auditErr != nil {
			logger.Error("failed to write audit record", map[string]interface{}{
				"kind":  string(audit.RecurringPaymentInitiationFailed),
				"error": auditErr.Error(),
			})
		}
		logger.Error("recurring payment initiation failed", map[string]interface{}{
			"queue_entry_id": entry.ID,
			"order_id":       newOrder.ID.Hex(),
			"status_code":    result.StatusCode,
		})
		return "initiation_failed"
	}

	if err := claim.Delete(ctx, entry.ID); err != nil {
		return e.keep(entry, err)
	}
	return "initiated"
}

func (e *Executor) stillBillable(product *models.Product) bool {
	if product == nil || !product.Active {
		return false
	}
	if product.Recurrent == nil || !product.Recurrent.Status {
		return false
	}
	for _, method := range product.PaymentType {
		if method == string(models.PaymentSystemGazprom) {
			return true
		}
	}
	return false
}

// cloneOrder derives the next-period order from its parent: fresh payment
// id, current product price, rebill reference, transient fields stripped.
func (e *Executor) cloneOrder(parent *models.Order, product *models.Product, trxID string) *models.Order {
	clone := *parent
	clone.ID = primitive.NewObjectID()
	clone.Status = models.OrderCreated
	clone.Payment = models.OrderPayment{
		ID:         newPaymentID(),
		TrxID:      trxID,
		Amount:     product.Price[models.GatewayKeyGazprom],
		Type:       parent.Payment.Type,
		Commission: parent.Payment.Commission,
	}
	clone.Recurrent = &models.OrderRecurrent{
		Rebill: trxID,
		Status: false,
	}
	clone.CreatedAt = e.now()
	clone.PaidAt = nil
	return &clone
}

// newPaymentID yields the 32-character external payment id the gateway
// echoes back as the customer key.
func newPaymentID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}

func (e *Executor) buildPaymentURL(newOrder, parent *models.Order, product *models.Product) string {
	successURL := product.Redirect
	if len(successURL) <= 1 {
		successURL = e.cfg.MainURL + "/order/confirmed?order=" + parent.Payer
	}

	params := url.Values{}
	params.Set(models.PayloadFieldCustomerKey, newOrder.Payment.ID)
	params.Set(models.PayloadFieldPaymentStatus, models.PaymentStatusAuto)
	params.Set("lang_code", "RU")
	params.Set(models.PayloadFieldMerchID, e.cfg.MerchID)
	params.Set("back_url_s", successURL)
	params.Set("back_url_f", e.cfg.FailURL)

	return e.cfg.InitiateURL + "?" + params.Encode()
}

func (e *Executor) drop(ctx context.Context, claim Claim, entry models.RecurrentQueueEntry, reason string) string {
	if err := claim.Delete(ctx, entry.ID); err != nil {
		return e.keep(entry, err)
	}
	logger.Info("recurrent queue entry dropped", map[string]interface{}{
		"queue_entry_id": entry.ID,
		"order_id":       entry.OrderID,
		"reason":         reason,
	})
	return "dropped"
}

func (e *Executor) keep(entry models.RecurrentQueueEntry, err error) string {
	logger.Error("recurrent queue entry kept for retry", map[string]interface{}{
		"queue_entry_id": entry.ID,
		"order_id":       entry.OrderID,
		"error":          err.Error(),
	})
	return "error"
}
