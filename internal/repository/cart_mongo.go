package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ranntharath/ecomerce-backend/internal/domain"
)

// MongoCartStore is a CartStore backed by the carts collection. A unique
// index on user_id enforces the one-cart-per-user invariant.
type MongoCartStore struct {
	collection *mongo.Collection
}

func NewMongoCartStore(db *mongo.Database) *MongoCartStore {
	return &MongoCartStore{collection: db.Collection("carts")}
}

func (s *MongoCartStore) FindByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := s.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

func (s *MongoCartStore) Upsert(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": bson.M{
		"user_id":    cart.UserID,
		"items":      cart.Items,
		"updated_at": cart.UpdatedAt,
	}, "$setOnInsert": bson.M{
		"created_at": cart.CreatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (s *MongoCartStore) Delete(ctx context.Context, userID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

// EnsureIndexes creates the unique user_id index.
func (s *MongoCartStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}
