// Package certs holds the gateway certificates used for signature
// verification. They are loaded and decrypted once at startup; afterwards
// the cache is immutable and safe for concurrent reads.
package certs

import (
	"context"
	"fmt"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// Source is the encrypted-storage read the cache loads from.
type Source interface {
	EncryptedRecordsByDestination(ctx context.Context, destination string) ([]ledger.EncryptedRecord, error)
}

// Cache maps merchant ids to decrypted certificate PEMs.
type Cache struct {
	content map[string]string
}

// LoadAll reads and decrypts every certificate stored for the payment system.
func LoadAll(ctx context.Context, source Source, enc *Encryption) (*Cache, error) {
	records, err := source.EncryptedRecordsByDestination(ctx, string(models.PaymentSystemGazprom))
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate records: %w", err)
	}

	cache := &Cache{content: make(map[string]string, len(records))}
	for _, record := range records {
		merchID := record.Metadata[models.PayloadFieldMerchID]
		if merchID == "" {
			logger.Warn("certificate record without merch_id skipped", nil)
			continue
		}
		decrypted, err := enc.Decrypt(record.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt certificate for merchant %q: %w", merchID, err)
		}
		cache.content[merchID] = decrypted
	}

	logger.Info("certificates loaded", map[string]interface{}{
		"count": len(cache.content),
	})
	return cache, nil
}

// Get returns the certificate PEM for a merchant id, or "" when unknown.
func (c *Cache) Get(merchID string) string {
	return c.content[merchID]
}

// NewCacheFromMap builds a cache directly; used by tests and local tooling.
func NewCacheFromMap(content map[string]string) *Cache {
	return &Cache{content: content}
}
