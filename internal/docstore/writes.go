package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// RejectOrder marks the order Rejected. Status is monotonic: the filter only
// matches while the order is still Created.
func (s *Store) RejectOrder(ctx context.Context, orderID primitive.ObjectID) error {
	_, err := s.db.Collection(collectionOrders).UpdateOne(ctx,
		bson.M{"_id": orderID, "status": models.OrderCreated},
		bson.M{"$set": bson.M{"status": models.OrderRejected}})
	if err != nil {
		return fmt.Errorf("failed to reject order %s: %w", orderID.Hex(), err)
	}
	return nil
}

// ConfirmOrder marks the order Confirmed with the settled amount and payment
// timestamp.
func (s *Store) ConfirmOrder(ctx context.Context, orderID primitive.ObjectID, paymentAmount float64, paidAt time.Time) error {
	_, err := s.db.Collection(collectionOrders).UpdateOne(ctx,
		bson.M{"_id": orderID, "status": models.OrderCreated},
		bson.M{"$set": bson.M{
			"payment.amount": paymentAmount,
			"status":         models.OrderConfirmed,
			"paidAt":         paidAt,
		}})
	if err != nil {
		return fmt.Errorf("failed to confirm order %s: %w", orderID.Hex(), err)
	}
	return nil
}

// SetOrderTrxID idempotently records the gateway transaction id on the order.
func (s *Store) SetOrderTrxID(ctx context.Context, orderID primitive.ObjectID, trxID string) error {
	_, err := s.db.Collection(collectionOrders).UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$set": bson.M{"payment.trx_id": trxID}})
	if err != nil {
		return fmt.Errorf("failed to set trx id on order %s: %w", orderID.Hex(), err)
	}
	return nil
}

// InsertTransaction mirrors one settled movement.
func (s *Store) InsertTransaction(ctx context.Context, trx models.DocTransaction) error {
	_, err := s.db.Collection(collectionTransactions).InsertOne(ctx, trx)
	if err != nil {
		return fmt.Errorf("failed to insert document transaction: %w", err)
	}
	return nil
}

// InsertOrder stores a freshly cloned recurring order.
func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.Collection(collectionOrders).InsertOne(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}
