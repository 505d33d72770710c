package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ranntharath/ecomerce-backend/internal/domain"
)

// MongoOrderStore is an OrderStore backed by the orders collection.
type MongoOrderStore struct {
	collection *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{collection: db.Collection("orders")}
}

func (s *MongoOrderStore) Insert(ctx context.Context, order *domain.Order) (string, error) {
	now := time.Now()
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	if _, err := s.collection.InsertOne(ctx, order); err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}
	return order.ID, nil
}

func (s *MongoOrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (s *MongoOrderStore) FindByUser(ctx context.Context, userID string, limit, offset int64) ([]domain.Order, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, total, nil
}

// FindByPaymentOrOrderID resolves an order from a gateway event, which may
// carry a payment id, an order id, or both.
func (s *MongoOrderStore) FindByPaymentOrOrderID(ctx context.Context, paymentID, orderID string) (*domain.Order, error) {
	var clauses []bson.M
	if paymentID != "" {
		clauses = append(clauses, bson.M{"payment_id": paymentID})
	}
	if orderID != "" {
		clauses = append(clauses, bson.M{"_id": orderID})
	}
	if len(clauses) == 0 {
		return nil, ErrOrderNotFound
	}

	var order domain.Order
	err := s.collection.FindOne(ctx, bson.M{"$or": clauses}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order by payment: %w", err)
	}
	return &order, nil
}

func (s *MongoOrderStore) Update(ctx context.Context, id string, update domain.OrderStatusUpdate) error {
	set := bson.M{"updated_at": time.Now()}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.PaymentStatus != nil {
		set["payment_status"] = *update.PaymentStatus
	}
	if update.PaymentID != nil {
		set["payment_id"] = *update.PaymentID
	}
	if update.TransactionID != nil {
		set["transaction_id"] = *update.TransactionID
	}
	if update.RefundReason != nil {
		set["refund_reason"] = *update.RefundReason
	}
	if update.RefundedAt != nil {
		set["refunded_at"] = *update.RefundedAt
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// EnsureIndexes creates lookup indexes used by reconciliation and listing.
func (s *MongoOrderStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "payment_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}
