package msgstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoStore is a Store backed by go.mongodb.org/mongo-driver/v2, grounded
// on the teacher's features/run/mongo append-only event log shape: every
// call is a plain insert, no upsert/update semantics needed.
type MongoStore struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore returns a MongoStore backed by the given collection.
// timeout bounds each insert; zero means no timeout.
func NewMongoStore(collection *mongo.Collection, timeout time.Duration) *MongoStore {
	return &MongoStore{collection: collection, timeout: timeout}
}

type messageDocument struct {
	ID               string `bson:"_id"`
	SessionID        string `bson:"session_id"`
	MessageJSON      string `bson:"message_json"`
	TimestampMsEpoch int64  `bson:"timestamp_ms_epoch"`
	MessageType      string `bson:"message_type"`
}

func (s *MongoStore) Create(ctx context.Context, entity Entity) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	doc := messageDocument{
		ID:               entity.ID,
		SessionID:        entity.SessionID,
		MessageJSON:      entity.MessageJSON,
		TimestampMsEpoch: entity.TimestampMsEpoch,
		MessageType:      entity.MessageType,
	}
	_, err := s.collection.InsertOne(ctx, doc)
	return err
}
