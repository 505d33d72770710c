package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSettlementEventStore records processed settlement events keyed by a
// unique event id. The unique _id makes Record first-writer-wins across
// concurrent webhook and poll deliveries, even across instances.
type MongoSettlementEventStore struct {
	collection *mongo.Collection
}

func NewMongoSettlementEventStore(db *mongo.Database) *MongoSettlementEventStore {
	return &MongoSettlementEventStore{collection: db.Collection("settlement_events")}
}

func (s *MongoSettlementEventStore) Record(ctx context.Context, key string) (bool, error) {
	_, err := s.collection.InsertOne(ctx, bson.M{
		"_id":          key,
		"processed_at": time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record settlement event: %w", err)
	}
	return true, nil
}
