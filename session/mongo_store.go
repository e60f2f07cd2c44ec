package session

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore is a Store backed by go.mongodb.org/mongo-driver/v2, grounded
// on the teacher's features/session/mongo client shape but collapsed to
// spec §6.3's three operations (create/get-by-id/update) instead of the
// teacher's richer session+run-metadata API.
type MongoStore struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore returns a MongoStore backed by the given collection.
// timeout bounds each operation; zero means no timeout.
func NewMongoStore(collection *mongo.Collection, timeout time.Duration) *MongoStore {
	return &MongoStore{collection: collection, timeout: timeout}
}

type sessionDocument struct {
	ID        string     `bson:"_id"`
	Status    Status     `bson:"status"`
	CreatedAt time.Time  `bson:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty"`
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *MongoStore) Create(ctx context.Context, entity Entity) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := toDocument(entity)
	_, err := s.collection.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (Entity, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc sessionDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, err
	}
	return doc.toEntity(), nil
}

func (s *MongoStore) Update(ctx context.Context, entity Entity) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := toDocument(entity)
	update := bson.M{"$set": bson.M{
		"status":     doc.Status,
		"created_at": doc.CreatedAt,
		"ended_at":   doc.EndedAt,
	}}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": doc.ID}, update, options.UpdateOne())
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func toDocument(e Entity) sessionDocument {
	var endedAt *time.Time
	if e.EndedAt != nil {
		at := *e.EndedAt
		endedAt = &at
	}
	return sessionDocument{ID: e.ID, Status: e.Status, CreatedAt: e.CreatedAt, EndedAt: endedAt}
}

func (doc sessionDocument) toEntity() Entity {
	var endedAt *time.Time
	if doc.EndedAt != nil {
		at := *doc.EndedAt
		endedAt = &at
	}
	return Entity{ID: doc.ID, Status: doc.Status, CreatedAt: doc.CreatedAt, EndedAt: endedAt}
}
