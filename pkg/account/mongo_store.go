package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "accounts"

// MongoStore persists accounts in a MongoDB collection, one document per
// account keyed by the auth provider's id. Update uses optimistic concurrency
// on the version field with a single transparent retry, which is the store's
// transactional primitive every counter mutation goes through.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the index backing FindBySubscriptionRef. Call once at
// startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "billingSubscriptionRef", Value: 1}},
		Options: options.Index().SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Account, error) {
	var a Account
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &a, nil
}

func (s *MongoStore) Create(ctx context.Context, a *Account) error {
	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create account %s: %w", a.ID, err)
	}
	return nil
}

// Update runs a compare-and-swap cycle: read, apply fn to a copy, replace
// guarded by the version read. A concurrent writer bumps the version and the
// replace matches nothing; the cycle is retried once before ErrConflict.
func (s *MongoStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Account, error) {
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
			return nil, fmt.Errorf("update account %s: %w", id, err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}

	return nil, ErrConflict
}

func (s *MongoStore) FindBySubscriptionRef(ctx context.Context, ref string) (*Account, error) {
	if ref == "" {
		return nil, ErrNotFound
	}

	var a Account
	if err := s.coll.FindOne(ctx, bson.M{"billingSubscriptionRef": ref}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account by subscription ref: %w", err)
	}
	return &a, nil
}
