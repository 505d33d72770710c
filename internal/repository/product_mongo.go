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

type mongoProductStore struct {
	collection *mongo.Collection
}

// NewMongoProductStore returns a ProductStore backed by the products
// collection.
func NewMongoProductStore(db *mongo.Database) ProductStore {
	return &mongoProductStore{collection: db.Collection("products")}
}

func (s *mongoProductStore) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

func (s *mongoProductStore) List(ctx context.Context, limit, offset int64) ([]domain.Product, int64, error) {
	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []domain.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, total, nil
}

// DecrementStock decrements only when current stock covers qty. The filter
// and $inc run as one document update, so concurrent reservations cannot
// drive stock negative.
func (s *mongoProductStore) DecrementStock(ctx context.Context, id string, qty int) error {
	filter := bson.M{
		"_id":   id,
		"stock": bson.M{"$gte": qty},
	}
	update := bson.M{
		"$inc": bson.M{"stock": -qty},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing product from a stock shortage.
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

func (s *mongoProductStore) IncrementStock(ctx context.Context, id string, qty int) error {
	update := bson.M{
		"$inc": bson.M{"stock": qty},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}
