package ledger

import (
	"context"
	"encoding/json"
	"fmt"
)

// EncryptedRecord is one row of the encrypted_storage table.
type EncryptedRecord struct {
	Metadata map[string]string
	Content  string
}

// EncryptedRecordsByDestination loads the encrypted certificate material for
// one payment system.
func (s *Store) EncryptedRecordsByDestination(ctx context.Context, destination string) ([]EncryptedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metadata, content FROM encrypted_storage WHERE destination = $1`, destination)
	if err != nil {
		return nil, fmt.Errorf("failed to select encrypted storage records: %w", err)
	}
	defer rows.Close()

	var records []EncryptedRecord
	for rows.Next() {
		var (
			rec     EncryptedRecord
			rawMeta []byte
		)
		if err := rows.Scan(&rawMeta, &rec.Content); err != nil {
			return nil, fmt.Errorf("failed to scan encrypted storage record: %w", err)
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode encrypted storage metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate encrypted storage records: %w", err)
	}
	return records, nil
}
