package webhook

import (
	"encoding/xml"
	"fmt"
)

// The gateway expects XML-shaped responses with fixed element names.

type Result struct {
	Code int    `xml:"code"`
	Desc string `xml:"desc"`
}

type AccountAmount struct {
	ID       string `xml:"id"`
	Amount   int64  `xml:"amount"`
	Currency int    `xml:"currency"`
	Exponent int    `xml:"exponent"`
}

type Purchase struct {
	LongDesc      string         `xml:"long-desc"`
	AccountAmount *AccountAmount `xml:"account-amount"`
}

type Card struct {
	TrxID string `xml:"trx-id"`
	// Present "N" selects a recurrent payment, "Y" an ordinary one.
	Present string `xml:"present"`
}

// PaymentAvailResponse answers a preparation webhook. Purchase and Card are
// present only on accept.
type PaymentAvailResponse struct {
	XMLName  xml.Name  `xml:"payment-avail-response"`
	Result   Result    `xml:"result"`
	Purchase *Purchase `xml:"purchase,omitempty"`
	Card     *Card     `xml:"card,omitempty"`
}

// RegisterPaymentResponse is the fixed completion acknowledgement.
type RegisterPaymentResponse struct {
	XMLName xml.Name `xml:"register-payment-response"`
	Result  Result   `xml:"result"`
}

const (
	resultCodeAccept  = 1
	resultCodeDecline = 2
)

func acceptRegisterPaymentResponse() *RegisterPaymentResponse {
	return &RegisterPaymentResponse{
		Result: Result{Code: resultCodeAccept, Desc: "accept payment"},
	}
}

func declinePaymentAvailResponse() *PaymentAvailResponse {
	return &PaymentAvailResponse{
		Result: Result{Code: resultCodeDecline, Desc: "Unable to accept this payment"},
	}
}

// FinalResult is what the HTTP layer sends back to the gateway.
type FinalResult struct {
	Payload     interface{}
	ContentType string
}

const contentTypeXML = "application/xml"

// Render serializes the payload for the response body.
func (r *FinalResult) Render() (string, error) {
	out, err := xml.Marshal(r.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response payload: %w", err)
	}
	return xml.Header + string(out), nil
}
