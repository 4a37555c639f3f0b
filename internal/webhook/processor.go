// Package webhook drives the preparation and completion workflows for
// gateway callbacks previously stored as incoming requests.
package webhook

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/audit"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/metrics"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// Ledger is the relational store surface the workflows need.
type Ledger interface {
	IncomingRequestByID(ctx context.Context, id int64) (*models.IncomingRequest, error)
	SetIncomingRequestStatus(ctx context.Context, id int64, status models.IncomingRequestStatus) error
	CompleteConfirmedOrder(ctx context.Context, p ledger.ConfirmedCompletion) error
	CompleteRejectedOrder(ctx context.Context, p ledger.RejectedCompletion) error
}

// DocStore is the document-store surface the workflows need.
type DocStore interface {
	OrderByPaymentID(ctx context.Context, incomingRequestID int64, paymentID string) (*models.Order, error)
	ProductByID(ctx context.Context, incomingRequestID int64, id primitive.ObjectID) (*models.Product, error)
	OwnerByID(ctx context.Context, incomingRequestID int64, id primitive.ObjectID) (*models.Owner, error)
	BalanceByOwner(ctx context.Context, incomingRequestID int64, ownerID primitive.ObjectID, currency models.Currency) (*models.OwnerBalance, error)
	RejectOrder(ctx context.Context, orderID primitive.ObjectID) error
	ConfirmOrder(ctx context.Context, orderID primitive.ObjectID, paymentAmount float64, paidAt time.Time) error
	SetOrderTrxID(ctx context.Context, orderID primitive.ObjectID, trxID string) error
	InsertTransaction(ctx context.Context, trx models.DocTransaction) error
}

// Certificates resolves a merchant id to its certificate PEM.
type Certificates interface {
	Get(merchID string) string
}

// Processor guards idempotency and dispatches an incoming request to its
// workflow. It holds no per-request state.
type Processor struct {
	ledger   Ledger
	docs     DocStore
	certs    Certificates
	auditor  audit.Writer
	notifier *Notifier
	merchID  string
	now      func() time.Time
}

func NewProcessor(l Ledger, docs DocStore, certificates Certificates, auditor audit.Writer, notifier *Notifier, merchID string) *Processor {
	return &Processor{
		ledger:   l,
		docs:     docs,
		certs:    certificates,
		auditor:  auditor,
		notifier: notifier,
		merchID:  merchID,
		now:      time.Now,
	}
}

// recordAudit keeps the workflow failure observable even when the audit
// trail itself cannot be written.
func (p *Processor) recordAudit(ctx context.Context, kind audit.Kind, payload audit.Payload) {
	if err := p.auditor.Write(ctx, kind, payload); err != nil {
		logger.Error("failed to write audit record", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
	}
}

// Process loads the incoming request and runs the matching workflow. A
// request whose status is not Received is rejected here, before any handler
// runs: concurrent duplicate deliveries must never reach a workflow twice.
func (p *Processor) Process(ctx context.Context, incomingRequestID int64) (*FinalResult, error) {
	started := p.now()

	req, err := p.ledger.IncomingRequestByID(ctx, incomingRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, faults.New(faults.NotFound, "incoming request %d not found", incomingRequestID)
	}

	if req.Status != models.IncomingRequestReceived {
		p.recordAudit(ctx, audit.UnacceptableIncomingRequestStatus, audit.Payload{
			"incomingRequestId": req.ID,
			"status":            req.Status,
		})
		return nil, faults.New(faults.BadInput,
			"incoming request %d has status %q and cannot be processed", req.ID, req.Status)
	}

	if req.PaymentSystem != models.PaymentSystemGazprom {
		p.recordAudit(ctx, audit.UnknownPaymentSystem, audit.Payload{
			"incomingRequestId": req.ID,
			"paymentSystem":     req.PaymentSystem,
		})
		return nil, faults.New(faults.BadInput, "unknown payment system %q", req.PaymentSystem)
	}

	var result *FinalResult
	switch req.Destination {
	case models.DestinationPreparation:
		result, err = p.prepare(ctx, req)
	case models.DestinationCompletion:
		result, err = p.complete(ctx, req)
	default:
		p.recordAudit(ctx, audit.UnknownHandlerDestination, audit.Payload{
			"incomingRequestId":  req.ID,
			"handlerDestination": req.Destination,
		})
		err = faults.New(faults.BadInput, "unknown handler destination %q", req.Destination)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(faults.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	metrics.WebhooksProcessedTotal.WithLabelValues(string(req.Destination), outcome).Inc()
	metrics.WebhookProcessingDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		logger.Error("webhook processing failed", map[string]interface{}{
			"incoming_request_id": req.ID,
			"destination":         req.Destination,
			"error":               err.Error(),
		})
		return nil, err
	}
	return result, nil
}
