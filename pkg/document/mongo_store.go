package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "documents"

// MongoStore persists documents with the same optimistic-CAS Update primitive
// as the account store.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the owner index backing DeleteByOwner. Call once at
// startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ownerId", Value: 1}},
		Options: options.Index(),
	})
	if err != nil {
		return fmt.Errorf("create document indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &d, nil
}

func (s *MongoStore) Create(ctx context.Context, d *Document) error {
	if len(d.Content) > MaxContentLength {
		return ErrContentTooLarge
	}

	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create document %s: %w", d.ID, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Document, error) {
	const attempts = 2

	for range attempts {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = time.Now().UTC()

		res, err := s.coll.ReplaceOne(ctx,
			bson.M{"_id": id, "version": current.Version},
			next,
		)
		if err != nil {
			return nil, fmt.Errorf("update document %s: %w", id, err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}

	return nil, ErrConflict
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return 0, fmt.Errorf("delete documents for owner %s: %w", ownerID, err)
	}
	return res.DeletedCount, nil
}
