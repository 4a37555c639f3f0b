package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/webhook"
)

// Processor runs one stored incoming request through its workflow.
type Processor interface {
	Process(ctx context.Context, incomingRequestID int64) (*webhook.FinalResult, error)
}

// WebhookHandler serves POST /handler: it takes the id of a previously
// persisted incoming request and replies with the gateway-facing payload.
type WebhookHandler struct {
	processor Processor
}

func NewWebhookHandler(processor Processor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

type processRequest struct {
	IncomingRequestID int64 `json:"incomingRequestId"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Request bodies carry a single id; anything bigger is garbage.
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read request body", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req processRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Error("failed to unmarshal process request", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.IncomingRequestID <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "incomingRequestId must be a positive integer"})
		return
	}

	result, err := h.processor.Process(r.Context(), req.IncomingRequestID)
	if err != nil {
		status := statusForError(err)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	rendered, err := result.Render()
	if err != nil {
		logger.Error("failed to render response payload", map[string]interface{}{
			"incoming_request_id": req.IncomingRequestID,
			"error":               err.Error(),
		})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, rendered)
}

// statusForError maps workflow fault kinds onto HTTP status codes.
func statusForError(err error) int {
	switch faults.KindOf(err) {
	case faults.BadInput:
		return http.StatusBadRequest
	case faults.NotFound:
		return http.StatusNotFound
	case faults.StoreUnavailable:
		return http.StatusServiceUnavailable
	case faults.SignatureInvalid:
		return http.StatusForbidden
	case faults.GatewayUnavailable:
		return http.StatusBadGateway
	case faults.TransactionFailed:
		// serialization conflicts roll everything back; the delivery can
		// simply be retried
		if ledger.IsConflict(err) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler returns service health status
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
