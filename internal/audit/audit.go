// Package audit defines the durable audit trail written alongside workflow
// errors. Entries must be persisted before an error surfaces to the caller.
package audit

import "context"

// Kind names one auditable condition.
type Kind string

const (
	OrderNotFound                     Kind = "OrderNotFound"
	ProductNotFound                   Kind = "ProductNotFound"
	ProductOwnerNotFound              Kind = "ProductOwnerNotFound"
	ProductOwnerBalanceNotFound       Kind = "ProductOwnerBalanceNotFound"
	IncomingRequestAmountIsIncorrect  Kind = "IncomingRequestAmountIsIncorrect"
	SignatureIsIncorrect              Kind = "SignatureIsIncorrect"
	CertificateContentUnrecognizable  Kind = "CertificateContentUnrecognizable"
	UnacceptableIncomingRequestStatus Kind = "UnacceptableIncomingRequestStatus"
	UnknownHandlerDestination         Kind = "UnknownHandlerDestination"
	UnknownPaymentSystem              Kind = "UnknownPaymentSystem"
	OrderHasNoPaymentObject           Kind = "OrderHasNoPaymentObject"
	OrderStatusShouldBeCreated        Kind = "OrderStatusShouldBeCreated"
	RecurringPaymentInitiationFailed  Kind = "RecurringPaymentInitiationFailed"
)

// Payload is the free-form structured context stored with an entry.
type Payload map[string]interface{}

// Writer persists audit entries durably.
type Writer interface {
	Write(ctx context.Context, kind Kind, payload Payload) error
}
