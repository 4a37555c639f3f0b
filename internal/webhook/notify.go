package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
)

// ExternalInteraction is the payload forwarded after a processed completion
// so downstream merchant notifications can run.
type ExternalInteraction struct {
	OrderID         string  `json:"orderId"`
	ProductOwnerID  string  `json:"productOwnerId"`
	FinalAmount     float64 `json:"finalAmount"`
	UntouchedAmount float64 `json:"untouchedAmount"`
}

// Notifier posts completion results to the external interaction server.
// Failures are logged and never surfaced: the settlement already happened.
type Notifier struct {
	url    string
	client *http.Client
}

func NewNotifier(url string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *Notifier) Notify(payload ExternalInteraction) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to encode external interaction payload", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		logger.Error("failed to build external interaction request", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Error("external interaction notification failed", map[string]interface{}{
			"order_id": payload.OrderID,
			"error":    err.Error(),
		})
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("external interaction server answered non-200", map[string]interface{}{
			"order_id":    payload.OrderID,
			"status_code": resp.StatusCode,
		})
	}
}
