package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	registrationserrors "regdesk/internal/registrations/errors"
	"regdesk/pkg/config"
	"regdesk/pkg/model"
)

const (
	LockCollectionName = "Session_locks"
)

// SessionLockRepository is an advisory mutex keyed by session id. Acquire
// races on a unique _id insert; a TTL index on expires_at clears locks
// left behind by a crashed process.
type SessionLockRepository interface {
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) error
	Release(ctx context.Context, sessionID string) error
}

type mongoSessionLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSessionLockRepository(cfg *config.Config) SessionLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSessionLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoSessionLockRepository) Acquire(ctx context.Context, sessionID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	lock := model.SessionLock{
		ID:        sessionID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", registrationserrors.ErrSessionLocked, sessionID)
		}
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}

	return nil
}

func (r *mongoSessionLockRepository) Release(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}

	return nil
}
