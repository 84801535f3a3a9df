package deadletter

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the holding area for dead-lettered messages.
type Store interface {
	Insert(ctx context.Context, record Record) error
	FindOlderThan(ctx context.Context, cutoff time.Time, limit int64) ([]Record, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{
		collection: db.Collection(collection),
	}
}

func (s *MongoStore) Insert(ctx context.Context, record Record) error {
	_, err := s.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter record: %w", err)
	}

	return nil
}

// FindOlderThan returns records dead-lettered strictly before cutoff, up
// to limit, oldest first.
func (s *MongoStore) FindOlderThan(ctx context.Context, cutoff time.Time, limit int64) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.M{"dead_lettered_at": 1}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{
		"dead_lettered_at": bson.M{"$lt": cutoff},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired dead letter records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode expired dead letter records: %w", err)
	}

	return records, nil
}

// DeleteOlderThan removes records dead-lettered strictly before cutoff.
// Records inserted after the cutoff was captured are never matched.
func (s *MongoStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{
		"dead_lettered_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired dead letter records: %w", err)
	}

	return result.DeletedCount, nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letter records: %w", err)
	}

	return count, nil
}
