// Package recurrent schedules and re-drives recurring charges.
package recurrent

import (
	"time"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// Schedule computes the queue entry for the next occurrence of a recurring
// order. It is inserted inside the same ledger transaction that confirms the
// order.
//
// A webhook with payment status "new" confirms the very first payment, so
// the entry being scheduled IS the first recurring occurrence: it honors the
// product's first-period override when one is enabled. A webhook with status
// "auto" confirms a recurring charge, so the first period has already
// passed and the ordinary period applies.
func Schedule(order *models.Order, product *models.Product, paymentStatus, trxID string, now time.Time) *models.RecurrentQueueEntry {
	if product.Recurrent == nil || !product.Recurrent.Status {
		return nil
	}

	isFirstPeriod := paymentStatus == models.PaymentStatusNew

	days := product.Recurrent.Period
	if isFirstPeriod && product.Recurrent.FirstStatus && product.Recurrent.FirstPeriod > 0 {
		days = product.Recurrent.FirstPeriod
	}

	return &models.RecurrentQueueEntry{
		DateToExecute: now.Add(time.Duration(days) * 24 * time.Hour).Truncate(time.Second),
		IsFirstPeriod: isFirstPeriod,
		OrderID:       order.ID.Hex(),
		PaymentSystem: models.PaymentSystemGazprom,
		Metadata: models.RecurrentMetadata{
			TrxID: trxID,
		},
	}
}
