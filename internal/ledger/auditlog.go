package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/audit"
)

// Write persists one audit entry in the logs table. It implements
// audit.Writer; callers rely on the entry being durable before the related
// error surfaces.
func (s *Store) Write(ctx context.Context, kind audit.Kind, payload audit.Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO logs (type, payload) VALUES ($1, $2)`, string(kind), raw)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %q: %w", kind, err)
	}
	return nil
}
