package handlers

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/webhook"
)

type okPayload struct {
	XMLName xml.Name `xml:"ok"`
}

type stubProcessor struct {
	result *webhook.FinalResult
	err    error
	lastID int64
}

func (s *stubProcessor) Process(ctx context.Context, incomingRequestID int64) (*webhook.FinalResult, error) {
	s.lastID = incomingRequestID
	return s.result, s.err
}

func TestWebhookHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		result     *webhook.FinalResult
		err        error
		wantStatus int
	}{
		{
			name:   "renders the gateway payload",
			method: http.MethodPost,
			body:   `{"incomingRequestId": 41}`,
			result: &webhook.FinalResult{
				Payload:     okPayload{},
				ContentType: "application/xml",
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "rejects other methods",
			method:     http.MethodGet,
			body:       "",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "rejects malformed json",
			method:     http.MethodPost,
			body:       `{"incomingRequestId": `,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rejects missing id",
			method:     http.MethodPost,
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not found",
			method:     http.MethodPost,
			body:       `{"incomingRequestId": 9}`,
			err:        faults.New(faults.NotFound, "incoming request 9 not found"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad input",
			method:     http.MethodPost,
			body:       `{"incomingRequestId": 9}`,
			err:        faults.New(faults.BadInput, "already processed"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store outage is retryable",
			method:     http.MethodPost,
			body:       `{"incomingRequestId": 9}`,
			err:        faults.New(faults.StoreUnavailable, "failed to find order"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "invalid signature",
			method:     http.MethodPost,
			body:       `{"incomingRequestId": 9}`,
			err:        faults.New(faults.SignatureInvalid, "signature mismatch"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "settlement failure",
			method:     http.MethodPost,
			body:       `{"incomingRequestId": 9}`,
			err:        faults.New(faults.TransactionFailed, "deadlock"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "retryable serialization conflict",
			method:     http.MethodPost,
			body:       `{"incomingRequestId": 9}`,
			err:        faults.Wrap(faults.TransactionFailed, &pq.Error{Code: "40001"}, "settlement rolled back"),
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(&stubProcessor{result: tt.result, err: tt.err})

			req := httptest.NewRequest(tt.method, "/handler", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if got := rec.Header().Get("Content-Type"); got != "application/xml" {
					t.Errorf("content type = %q", got)
				}
				if !strings.HasPrefix(rec.Body.String(), "<?xml") {
					t.Errorf("body lacks xml header: %q", rec.Body.String())
				}
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
