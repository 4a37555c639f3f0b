// Package docstore wraps the MongoDB collections holding the canonical
// mutable order, product, owner and balance documents. The ledger is the
// system of record for money movements; writes here mirror it.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/audit"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
)

const (
	collectionOrders       = "orders"
	collectionProducts     = "products"
	collectionOwners       = "owners"
	collectionBalances     = "balances"
	collectionTransactions = "transactions"
)

// Store gives typed access to the document collections. Read misses are
// audit-logged through the injected writer before the error returns.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	audit  audit.Writer
}

// Connect establishes the Mongo connection and pings it.
func Connect(ctx context.Context, uri, database string, auditWriter audit.Writer) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	logger.Info("document store connection established", map[string]interface{}{
		"database": database,
	})
	return &Store{
		client: client,
		db:     client.Database(database),
		audit:  auditWriter,
	}, nil
}

// Close disconnects from the document store.
func (s *Store) Close(ctx context.Context) {
	if s.client != nil {
		s.client.Disconnect(ctx)
	}
}

// recordAudit keeps a read miss observable even when the audit trail itself
// cannot be written.
func (s *Store) recordAudit(ctx context.Context, kind audit.Kind, payload audit.Payload) {
	if err := s.audit.Write(ctx, kind, payload); err != nil {
		logger.Error("failed to write audit record", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
	}
}
