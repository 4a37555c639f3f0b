package webhook

import (
	"context"
	"fmt"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/audit"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// preparationPayload is the preparation webhook pulled into typed fields
// once, up front.
type preparationPayload struct {
	customerKey   string
	paymentStatus string
	trxID         string
}

// prepare answers "can this order be paid". Declines are reported in the
// response payload, not raised as errors; only an unacceptable payment
// status is a hard failure.
func (p *Processor) prepare(ctx context.Context, req *models.IncomingRequest) (*FinalResult, error) {
	payload := &preparationPayload{
		customerKey:   req.Payload[models.PayloadFieldCustomerKey],
		paymentStatus: req.Payload[models.PayloadFieldPaymentStatus],
		trxID:         req.Payload[models.PayloadFieldTrxID],
	}
	if payload.paymentStatus != models.PaymentStatusNew && payload.paymentStatus != models.PaymentStatusAuto {
		return nil, faults.New(faults.BadInput, "unacceptable payment status %q", payload.paymentStatus)
	}

	response, err := p.buildPreparationResponse(ctx, req, payload)
	if err != nil {
		// the request stays Received so a later delivery retries
		return nil, err
	}

	// The request is settled either way: accept and decline are both
	// final answers to the gateway.
	if err := p.ledger.SetIncomingRequestStatus(ctx, req.ID, models.IncomingRequestProcessed); err != nil {
		return nil, err
	}

	return &FinalResult{
		Payload:     response,
		ContentType: contentTypeXML,
	}, nil
}

// buildPreparationResponse declines only on a genuine miss: an order or
// product that does not exist. A store that cannot answer returns the error
// unwrapped so the caller never marks the request Processed over it.
func (p *Processor) buildPreparationResponse(ctx context.Context, req *models.IncomingRequest, payload *preparationPayload) (*PaymentAvailResponse, error) {
	order, err := p.docs.OrderByPaymentID(ctx, req.ID, payload.customerKey)
	if faults.IsKind(err, faults.NotFound) {
		return declinePaymentAvailResponse(), nil
	}
	if err != nil {
		return nil, err
	}

	if order.Status != models.OrderCreated {
		p.recordAudit(ctx, audit.OrderStatusShouldBeCreated, audit.Payload{
			"incomingRequestId": req.ID,
			"orderId":           order.ID.Hex(),
			"status":            order.Status,
		})
		return declinePaymentAvailResponse(), nil
	}
	if order.Payment.Amount != float64(int64(order.Payment.Amount)) {
		return declinePaymentAvailResponse(), nil
	}

	product, err := p.docs.ProductByID(ctx, req.ID, order.Product)
	if faults.IsKind(err, faults.NotFound) {
		return declinePaymentAvailResponse(), nil
	}
	if err != nil {
		return nil, err
	}

	// Record the gateway transaction id on the order; repeated deliveries
	// set the same value again.
	if payload.trxID != "" {
		if err := p.docs.SetOrderTrxID(ctx, order.ID, payload.trxID); err != nil {
			logger.Error("failed to record trx id on order", map[string]interface{}{
				"order_id": order.ID.Hex(),
				"error":    err.Error(),
			})
		}
	}

	response := &PaymentAvailResponse{
		Result: Result{Code: resultCodeAccept, Desc: "Payment accepted"},
		Purchase: &Purchase{
			LongDesc: fmt.Sprintf("Оплата продукта: %q", product.Name),
			AccountAmount: &AccountAmount{
				ID: p.merchID,
				// amount goes back in minor units
				Amount:   int64(order.Payment.Amount) * 100,
				Currency: models.CurrencyRubNumeric,
				Exponent: models.CurrencyRubExponent,
			},
		},
	}
	if payload.paymentStatus == models.PaymentStatusAuto {
		response.Card = &Card{TrxID: order.Payment.TrxID, Present: "N"}
	}
	return response, nil
}
