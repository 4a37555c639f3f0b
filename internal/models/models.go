package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IncomingRequestStatus tracks the lifecycle of a stored webhook callback.
// Only a Received request may be processed; the transition is one-way.
type IncomingRequestStatus string

const (
	IncomingRequestReceived  IncomingRequestStatus = "Received"
	IncomingRequestProcessed IncomingRequestStatus = "Processed"
	IncomingRequestFailed    IncomingRequestStatus = "Failed"
)

// HandlerDestination selects which workflow an incoming request belongs to.
type HandlerDestination string

const (
	DestinationPreparation HandlerDestination = "Preparation"
	DestinationCompletion  HandlerDestination = "Completion"
)

// PaymentSystem identifies the external gateway that issued a callback.
type PaymentSystem string

const (
	PaymentSystemGazprom PaymentSystem = "Gazprom"
)

// OrderStatus is monotonic: terminal once non-Created.
type OrderStatus string

const (
	OrderCreated   OrderStatus = "Created"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderRejected  OrderStatus = "Rejected"
)

type Currency string

const (
	CurrencyRub Currency = "RUB"
)

// ISO 4217 numeric code and exponent used in gateway responses.
const (
	CurrencyRubNumeric  = 643
	CurrencyRubExponent = 2
)

type BalanceUpdateOperation string

const (
	BalanceIncrement BalanceUpdateOperation = "Increment"
	BalanceDecrement BalanceUpdateOperation = "Decrement"
)

type PaymentTransactionType string

const (
	TransactionReceiving PaymentTransactionType = "Receiving"
)

// Gateway payment statuses as they appear in the "o.PaymentStatus" payload field.
// "new" marks the very first payment of an order, "auto" a recurring re-charge.
const (
	PaymentStatusNew  = "new"
	PaymentStatusAuto = "auto"
)

// Payload field names are gateway-defined and matched bit-exact, case-sensitive.
const (
	PayloadFieldCustomerKey   = "o.CustomerKey"
	PayloadFieldPaymentStatus = "o.PaymentStatus"
	PayloadFieldMaskedPan     = "p.maskedPan"
	PayloadFieldAmount        = "amount"
	PayloadFieldResultCode    = "result_code"
	PayloadFieldSignature     = "signature"
	PayloadFieldMerchID       = "merch_id"
	PayloadFieldTrxID         = "trx_id"
)

// ResultCodeRejected is the gateway result code for a rejected payment attempt.
const ResultCodeRejected = "2"

// GatewayKeyGazprom is the key product price and owner commission maps use
// for this gateway.
const GatewayKeyGazprom = "GAZPROM"

// IncomingRequest is the ledger row a boundary layer created for a raw callback.
// The payload holds the gateway query parameters, metadata the request envelope
// (notably "fullUrl", which signature verification canonicalizes).
type IncomingRequest struct {
	ID            int64
	Payload       map[string]string
	Metadata      map[string]string
	Status        IncomingRequestStatus
	PaymentSystem PaymentSystem
	Destination   HandlerDestination
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderPayment is the payment block embedded in a document-store order.
type OrderPayment struct {
	ID         string  `bson:"id"`
	TrxID      string  `bson:"trx_id,omitempty"`
	Amount     float64 `bson:"amount"`
	Type       string  `bson:"type"`
	Commission bool    `bson:"commission"`
}

// OrderRecurrent carries the rebill reference of a cloned recurring order.
type OrderRecurrent struct {
	Rebill string `bson:"rebill,omitempty"`
	Status bool   `bson:"status"`
}

// Order is the canonical mutable order document.
type Order struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Status    OrderStatus        `bson:"status"`
	Payment   OrderPayment       `bson:"payment"`
	Recurrent *OrderRecurrent    `bson:"recurrent,omitempty"`
	Royalty   string             `bson:"royalty,omitempty"`
	Product   primitive.ObjectID `bson:"product"`
	Payer     string             `bson:"payer,omitempty"`
	Redirect  string             `bson:"redirect,omitempty"`
	CreatedAt time.Time          `bson:"createdAt,omitempty"`
	PaidAt    *time.Time         `bson:"paidAt,omitempty"`
}

// ProductRecurrent is the recurrence configuration on a product.
// FirstPeriod applies only to the very first scheduled occurrence and only
// when FirstStatus enables the override.
type ProductRecurrent struct {
	Status      bool `bson:"status"`
	Period      int  `bson:"period"`
	FirstPeriod int  `bson:"firstPeriod,omitempty"`
	FirstStatus bool `bson:"firstStatus,omitempty"`
}

// Product document: price is keyed by gateway name, PaymentType lists the
// payment methods the product currently accepts.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	UserID      primitive.ObjectID `bson:"user"`
	Active      bool               `bson:"active"`
	Price       map[string]float64 `bson:"price"`
	Recurrent   *ProductRecurrent  `bson:"recurrent,omitempty"`
	PaymentType []string           `bson:"paymentType,omitempty"`
	Redirect    string             `bson:"redirect,omitempty"`
}

// Owner is the user owning a product; Percents holds per-gateway commission
// overrides in whole percents (8 means 8%).
type Owner struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Percents map[string]float64 `bson:"percents,omitempty"`
}

// OwnerBalance is the document-store balance a first completion copies into
// the ledger.
type OwnerBalance struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       primitive.ObjectID `bson:"user"`
	Type         Currency           `bson:"type"`
	Balance      float64            `bson:"balance"`
	BalanceHash  string             `bson:"balance_hash,omitempty"`
	CardID       string             `bson:"card,omitempty"`
	WithdrawalAt *time.Time         `bson:"withdrawalAt,omitempty"`
}

// DocTransaction mirrors a settled movement into the document store.
type DocTransaction struct {
	Type    PaymentTransactionType `bson:"type"`
	UserID  primitive.ObjectID     `bson:"user"`
	Product primitive.ObjectID     `bson:"product"`
	Amount  float64                `bson:"amount"`
	Order   primitive.ObjectID     `bson:"order"`
	Pan     string                 `bson:"pan"`
}

// OrderLedgerRecord is the immutable ledger mirror written once at completion.
type OrderLedgerRecord struct {
	OrderID       string
	ProductID     string
	PaymentID     string
	PaymentSystem PaymentSystem
	PaymentAmount float64
	Status        OrderStatus
	PaidAt        *time.Time
}

// PaymentTransactionRecord is one immutable ledger row per settled movement.
type PaymentTransactionRecord struct {
	UserID    string
	ProductID string
	OrderID   string
	Amount    float64
	Pan       string
	Type      PaymentTransactionType
}

// RecurrentQueueEntry schedules one future re-charge of an order.
type RecurrentQueueEntry struct {
	ID            int64
	DateToExecute time.Time
	IsFirstPeriod bool
	OrderID       string
	PaymentSystem PaymentSystem
	Metadata      RecurrentMetadata
	CreatedAt     time.Time
}

// RecurrentMetadata is the jsonb blob stored alongside a queue entry.
type RecurrentMetadata struct {
	TrxID string `json:"trxId"`
}
