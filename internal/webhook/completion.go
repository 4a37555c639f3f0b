package webhook

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/amount"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/audit"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/metrics"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/recurrent"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/signature"
)

// completionPayload is the completion webhook pulled into typed fields once,
// before the state machine runs. Field names on the wire are gateway-defined
// and matched case-sensitive. The amount stays raw here: it is validated as
// its own state transition, after the signature.
type completionPayload struct {
	customerKey   string
	amountRaw     string
	resultCode    string
	maskedPan     string
	merchID       string
	signature     string
	paymentStatus string
	trxID         string
	fullURL       string
}

func newCompletionPayload(req *models.IncomingRequest) *completionPayload {
	return &completionPayload{
		customerKey:   req.Payload[models.PayloadFieldCustomerKey],
		amountRaw:     req.Payload[models.PayloadFieldAmount],
		resultCode:    req.Payload[models.PayloadFieldResultCode],
		maskedPan:     req.Payload[models.PayloadFieldMaskedPan],
		merchID:       req.Payload[models.PayloadFieldMerchID],
		signature:     req.Payload[models.PayloadFieldSignature],
		paymentStatus: req.Payload[models.PayloadFieldPaymentStatus],
		trxID:         req.Payload[models.PayloadFieldTrxID],
		fullURL:       req.Metadata["fullUrl"],
	}
}

// complete drives the settle-or-reject state machine for a completion
// webhook. The ledger write is the system of record; the document-store
// mirror follows it and is repaired out-of-band if it lags (the order and
// transaction ids are logged for reconciliation).
func (p *Processor) complete(ctx context.Context, req *models.IncomingRequest) (*FinalResult, error) {
	payload := newCompletionPayload(req)

	// Start -> SignatureVerified
	if err := p.verifySignature(ctx, req, payload); err != nil {
		return nil, err
	}

	// -> AmountResolved
	inputAmount, err := p.resolveAmount(ctx, req, payload.amountRaw)
	if err != nil {
		return nil, err
	}

	order, err := p.docs.OrderByPaymentID(ctx, req.ID, payload.customerKey)
	if err != nil {
		return nil, err
	}
	product, err := p.docs.ProductByID(ctx, req.ID, order.Product)
	if err != nil {
		return nil, err
	}
	owner, err := p.docs.OwnerByID(ctx, req.ID, product.UserID)
	if err != nil {
		return nil, err
	}

	if order.Payment.ID == "" {
		p.recordAudit(ctx, audit.OrderHasNoPaymentObject, audit.Payload{
			"incomingRequestId": req.ID,
			"order.id":          order.ID.Hex(),
			"productOwner.id":   owner.ID.Hex(),
		})
		return nil, faults.New(faults.NotFound, "order %s has no payment object", order.ID.Hex())
	}

	// the amount arrives in minor units
	untouched := amount.MajorUnits(inputAmount)
	percent := amount.CommissionPercent(owner, models.GatewayKeyGazprom).
		Div(decimal.NewFromInt(100))
	subtracted := amount.SubtractCommission(untouched, percent, order.Payment.Commission, decimal.Zero)

	// Branch: Rejected | Confirmed
	if payload.resultCode == models.ResultCodeRejected {
		return p.completeRejected(ctx, req, payload, order, owner)
	}

	finalAmount := amount.FinalAmount(subtracted, order.Royalty)
	return p.completeConfirmed(ctx, req, payload, order, product, owner, untouched, finalAmount)
}

// completeRejected settles a rejected attempt: a zero-amount transaction and
// a Rejected order mirror; balances and the recurrence queue stay untouched.
func (p *Processor) completeRejected(ctx context.Context, req *models.IncomingRequest,
	payload *completionPayload, order *models.Order, owner *models.Owner) (*FinalResult, error) {

	err := p.ledger.CompleteRejectedOrder(ctx, ledger.RejectedCompletion{
		IncomingRequestID: req.ID,
		Transaction: models.PaymentTransactionRecord{
			UserID:    owner.ID.Hex(),
			ProductID: order.Product.Hex(),
			OrderID:   order.ID.Hex(),
			Amount:    0,
			Pan:       payload.maskedPan,
			Type:      models.TransactionReceiving,
		},
		OrderRecord: models.OrderLedgerRecord{
			OrderID:       order.ID.Hex(),
			ProductID:     order.Product.Hex(),
			PaymentID:     order.Payment.ID,
			PaymentSystem: models.PaymentSystemGazprom,
			PaymentAmount: order.Payment.Amount,
			Status:        models.OrderRejected,
		},
	})
	if err != nil {
		metrics.CompletionTransactionsTotal.WithLabelValues("rejected_failed").Inc()
		return nil, err
	}
	metrics.CompletionTransactionsTotal.WithLabelValues("rejected").Inc()

	p.mirrorRejection(ctx, order, owner, payload.maskedPan)
	p.forwardResult(order, owner, 0, 0)

	return &FinalResult{
		Payload:     acceptRegisterPaymentResponse(),
		ContentType: contentTypeXML,
	}, nil
}

// completeConfirmed runs the atomic settlement and mirrors it.
func (p *Processor) completeConfirmed(ctx context.Context, req *models.IncomingRequest,
	payload *completionPayload, order *models.Order, product *models.Product,
	owner *models.Owner, untouched, finalAmount decimal.Decimal) (*FinalResult, error) {

	balance, err := p.docs.BalanceByOwner(ctx, req.ID, product.UserID, models.CurrencyRub)
	if err != nil {
		return nil, err
	}

	paidAt := p.now()
	settled := finalAmount.InexactFloat64()

	completion := ledger.ConfirmedCompletion{
		IncomingRequestID: req.ID,
		Transaction: models.PaymentTransactionRecord{
			UserID:    owner.ID.Hex(),
			ProductID: order.Product.Hex(),
			OrderID:   order.ID.Hex(),
			Amount:    settled,
			Pan:       payload.maskedPan,
			Type:      models.TransactionReceiving,
		},
		OrderRecord: models.OrderLedgerRecord{
			OrderID:       order.ID.Hex(),
			ProductID:     order.Product.Hex(),
			PaymentID:     order.Payment.ID,
			PaymentSystem: models.PaymentSystemGazprom,
			PaymentAmount: order.Payment.Amount,
			Status:        models.OrderConfirmed,
			PaidAt:        &paidAt,
		},
		OwnerID:       owner.ID.Hex(),
		Currency:      models.CurrencyRub,
		SourceBalance: balance,
		Schedule:      recurrent.Schedule(order, product, payload.paymentStatus, payload.trxID, paidAt),
	}

	if err := p.ledger.CompleteConfirmedOrder(ctx, completion); err != nil {
		metrics.CompletionTransactionsTotal.WithLabelValues("confirmed_failed").Inc()
		return nil, err
	}
	metrics.CompletionTransactionsTotal.WithLabelValues("confirmed").Inc()
	if completion.Schedule != nil {
		metrics.RecurrentEntriesScheduledTotal.Inc()
	}

	p.mirrorConfirmation(ctx, order, owner, payload.maskedPan, untouched.InexactFloat64(), settled, paidAt)
	p.forwardResult(order, owner, settled, untouched.InexactFloat64())

	return &FinalResult{
		Payload:     acceptRegisterPaymentResponse(),
		ContentType: contentTypeXML,
	}, nil
}

// verifySignature aborts the state machine on failure: the request is marked
// Failed and never retried.
func (p *Processor) verifySignature(ctx context.Context, req *models.IncomingRequest, payload *completionPayload) error {
	certificate := p.certs.Get(payload.merchID)
	if certificate == "" {
		p.recordAudit(ctx, audit.CertificateContentUnrecognizable, audit.Payload{
			"incomingRequestId": req.ID,
			"merch_id":          payload.merchID,
		})
		return faults.New(faults.BadInput, "no certificate for merchant %q", payload.merchID)
	}

	canonical := signature.CanonicalURL(payload.fullURL)
	err := signature.Verify(canonical, payload.signature, []byte(certificate))
	if err == nil {
		return nil
	}

	if statusErr := p.ledger.SetIncomingRequestStatus(ctx, req.ID, models.IncomingRequestFailed); statusErr != nil {
		logger.Error("failed to mark incoming request failed", map[string]interface{}{
			"incoming_request_id": req.ID,
			"error":               statusErr.Error(),
		})
	}
	p.recordAudit(ctx, audit.SignatureIsIncorrect, audit.Payload{
		"incomingRequestId": req.ID,
	})
	return err
}

func (p *Processor) resolveAmount(ctx context.Context, req *models.IncomingRequest, raw string) (decimal.Decimal, error) {
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		p.recordAudit(ctx, audit.IncomingRequestAmountIsIncorrect, audit.Payload{
			"incomingRequestId": req.ID,
		})
		return decimal.Zero, faults.New(faults.BadInput, "amount value %q is not a number", raw)
	}
	return decimal.NewFromFloat(parsed), nil
}

// mirrorRejection updates the document store after the ledger committed.
// A mirror failure is logged with the ids a reconciliation job needs; the
// settled ledger state is never rolled back for it.
func (p *Processor) mirrorRejection(ctx context.Context, order *models.Order, owner *models.Owner, cardPan string) {
	if err := p.docs.RejectOrder(ctx, order.ID); err != nil {
		p.logMirrorDrift(order, err)
	}
	err := p.docs.InsertTransaction(ctx, models.DocTransaction{
		Type:    models.TransactionReceiving,
		UserID:  owner.ID,
		Product: order.Product,
		Amount:  0,
		Order:   order.ID,
		Pan:     cardPan,
	})
	if err != nil {
		p.logMirrorDrift(order, err)
	}
}

func (p *Processor) mirrorConfirmation(ctx context.Context, order *models.Order, owner *models.Owner,
	cardPan string, untouched, settled float64, paidAt time.Time) {

	if err := p.docs.ConfirmOrder(ctx, order.ID, untouched, paidAt); err != nil {
		p.logMirrorDrift(order, err)
	}
	err := p.docs.InsertTransaction(ctx, models.DocTransaction{
		Type:    models.TransactionReceiving,
		UserID:  owner.ID,
		Product: order.Product,
		Amount:  settled,
		Order:   order.ID,
		Pan:     cardPan,
	})
	if err != nil {
		p.logMirrorDrift(order, err)
	}
}

func (p *Processor) logMirrorDrift(order *models.Order, err error) {
	logger.Error("document store mirror write failed", map[string]interface{}{
		"order_id":   order.ID.Hex(),
		"payment_id": order.Payment.ID,
		"error":      err.Error(),
	})
}

// forwardResult notifies the external interaction server about a processed
// completion. The response is not awaited.
func (p *Processor) forwardResult(order *models.Order, owner *models.Owner, finalAmount, untouchedAmount float64) {
	if p.notifier == nil {
		return
	}
	go p.notifier.Notify(ExternalInteraction{
		OrderID:         order.ID.Hex(),
		ProductOwnerID:  owner.ID.Hex(),
		FinalAmount:     finalAmount,
		UntouchedAmount: untouchedAmount,
	})
}
