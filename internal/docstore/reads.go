package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/audit"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// OrderByPaymentID finds the order carrying the external payment id the
// gateway echoes back as the customer key.
func (s *Store) OrderByPaymentID(ctx context.Context, incomingRequestID int64, paymentID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Collection(collectionOrders).
		FindOne(ctx, bson.M{"payment.id": paymentID}).
		Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.recordAudit(ctx, audit.OrderNotFound, audit.Payload{
			"incomingRequestId": incomingRequestID,
			"order.payment.id":  paymentID,
		})
		return nil, faults.New(faults.NotFound, "order not found (payment.id = %q)", paymentID)
	}
	if err != nil {
		return nil, faults.Wrap(faults.StoreUnavailable, err, "failed to find order by payment id %q", paymentID)
	}
	return &order, nil
}

// ProductByID loads one product document.
func (s *Store) ProductByID(ctx context.Context, incomingRequestID int64, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.db.Collection(collectionProducts).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.recordAudit(ctx, audit.ProductNotFound, audit.Payload{
			"incomingRequestId": incomingRequestID,
			"product.id":        id.Hex(),
		})
		return nil, faults.New(faults.NotFound, "product not found (id = %q)", id.Hex())
	}
	if err != nil {
		return nil, faults.Wrap(faults.StoreUnavailable, err, "failed to find product %q", id.Hex())
	}
	return &product, nil
}

// OwnerByID loads the user owning a product.
func (s *Store) OwnerByID(ctx context.Context, incomingRequestID int64, id primitive.ObjectID) (*models.Owner, error) {
	var owner models.Owner
	err := s.db.Collection(collectionOwners).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&owner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.recordAudit(ctx, audit.ProductOwnerNotFound, audit.Payload{
			"incomingRequestId": incomingRequestID,
			"productOwner.id":   id.Hex(),
		})
		return nil, faults.New(faults.NotFound, "product owner not found (id = %q)", id.Hex())
	}
	if err != nil {
		return nil, faults.Wrap(faults.StoreUnavailable, err, "failed to find product owner %q", id.Hex())
	}
	return &owner, nil
}

// FindOrder loads an order document by id. A missing order returns nil, nil:
// the recurrence executor drops stale queue entries silently.
func (s *Store) FindOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.db.Collection(collectionOrders).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %q: %w", id.Hex(), err)
	}
	return &order, nil
}

// FindProduct is FindOrder's counterpart for products.
func (s *Store) FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.db.Collection(collectionProducts).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %q: %w", id.Hex(), err)
	}
	return &product, nil
}

// BalanceByOwner loads the owner's balance document for one currency.
func (s *Store) BalanceByOwner(ctx context.Context, incomingRequestID int64, ownerID primitive.ObjectID, currency models.Currency) (*models.OwnerBalance, error) {
	var balance models.OwnerBalance
	err := s.db.Collection(collectionBalances).
		FindOne(ctx, bson.M{"user": ownerID, "type": currency}).
		Decode(&balance)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.recordAudit(ctx, audit.ProductOwnerBalanceNotFound, audit.Payload{
			"incomingRequestId": incomingRequestID,
			"userId":            ownerID.Hex(),
			"currencyType":      currency,
		})
		return nil, faults.New(faults.NotFound, "product owner balance not found (user.id = %q)", ownerID.Hex())
	}
	if err != nil {
		return nil, faults.Wrap(faults.StoreUnavailable, err, "failed to find balance of owner %q", ownerID.Hex())
	}
	return &balance, nil
}
