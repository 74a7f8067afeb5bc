package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	registrationserrors "regdesk/internal/registrations/errors"
	"regdesk/pkg/config"
	mongotx "regdesk/pkg/db/mongo"
	"regdesk/pkg/model"
)

const (
	CollectionName = "Registrations"
)

type mongoRegistrationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type RegistrationRepository interface {
	Create(ctx context.Context, registration *model.Registration) error
	FindByID(ctx context.Context, id string) (*model.Registration, error)
	FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.Registration, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*model.Registration, error)
	FindAll(ctx context.Context, filter *model.RegistrationFilter, limit int, offset int64) ([]*model.Registration, error)
	Count(ctx context.Context, filter *model.RegistrationFilter) (int64, error)
	Update(ctx context.Context, id string, update bson.M) (*model.Registration, error)
	// Revive rewrites a canceled or expired-pending row back to a fresh
	// pending hold. It matches on id AND the expected prior status so a
	// concurrent writer loses cleanly.
	Revive(ctx context.Context, id, priorStatus string, reg *model.Registration) error

	// CountCommitted counts confirmed and paid rows for the session.
	CountCommitted(ctx context.Context, sessionID string) (int64, error)
	// CountActiveLocks counts pending rows whose seat lock has not yet
	// expired at now.
	CountActiveLocks(ctx context.Context, sessionID string, now time.Time) (int64, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Registration, error)
	// CancelExpired flips a single pending row to canceled iff the lock
	// is still expired at now. Returns false when the row was already
	// changed by someone else.
	CancelExpired(ctx context.Context, id string, now time.Time) (bool, error)

	ReassignStudent(ctx context.Context, fromStudentIDs []string, toStudentID string) (int64, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoRegistrationRepository(cfg *config.Config) RegistrationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRegistrationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoRegistrationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoRegistrationRepository) Create(ctx context.Context, registration *model.Registration) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	registration.CreatedAt = now
	registration.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, registration)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: session %s student %s",
				registrationserrors.ErrAlreadyRegistered, registration.SessionID, registration.StudentID)
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		registration.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRegistrationRepository) FindByID(ctx context.Context, id string) (*model.Registration, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", registrationserrors.ErrInvalidID, id)
	}

	var registration model.Registration
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&registration)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registrationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}

	return &registration, nil
}

func (r *mongoRegistrationRepository) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.Registration, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var registration model.Registration
	filter := bson.M{"session_id": sessionID, "student_id": studentID}
	err := r.collection.FindOne(ctx, filter).Decode(&registration)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registrationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}

	return &registration, nil
}

func (r *mongoRegistrationRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (*model.Registration, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var registration model.Registration
	err := r.collection.FindOne(ctx, bson.M{"payment_ref": paymentRef}).Decode(&registration)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registrationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find registration by payment ref: %w", err)
	}

	return &registration, nil
}

func buildRegistrationFilter(filter *model.RegistrationFilter) bson.M {
	query := bson.M{}
	if filter == nil {
		return query
	}
	if filter.SessionID != "" {
		query["session_id"] = filter.SessionID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if len(filter.StudentIDs) > 0 {
		query["student_id"] = bson.M{"$in": filter.StudentIDs}
	}
	return query
}

func (r *mongoRegistrationRepository) FindAll(ctx context.Context, filter *model.RegistrationFilter, limit int, offset int64) ([]*model.Registration, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, buildRegistrationFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find registrations: %w", err)
	}
	defer cursor.Close(ctx)

	var registrations []*model.Registration
	if err = cursor.All(ctx, &registrations); err != nil {
		return nil, fmt.Errorf("failed to decode registrations: %w", err)
	}

	return registrations, nil
}

func (r *mongoRegistrationRepository) Count(ctx context.Context, filter *model.RegistrationFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildRegistrationFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}

	return count, nil
}

func (r *mongoRegistrationRepository) Update(ctx context.Context, id string, update bson.M) (*model.Registration, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", registrationserrors.ErrInvalidID, id)
	}

	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var registration model.Registration
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, update, opts).Decode(&registration)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registrationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}

	return &registration, nil
}

func (r *mongoRegistrationRepository) Revive(ctx context.Context, id, priorStatus string, reg *model.Registration) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", registrationserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"status":          reg.Status,
			"amount":          reg.Amount,
			"currency":        reg.Currency,
			"seat_lock_until": reg.SeatLockUntil,
			"notes":           reg.Notes,
			"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
		},
		"$unset": bson.M{
			"payment_method": "",
			"payment_ref":    "",
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "status": priorStatus}, update)
	if err != nil {
		return fmt.Errorf("failed to revive registration: %w", err)
	}

	if result.MatchedCount == 0 {
		return registrationserrors.ErrAlreadyRegistered
	}

	reg.ID = id
	return nil
}

func (r *mongoRegistrationRepository) CountCommitted(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"session_id": sessionID,
		"status":     bson.M{"$in": []string{model.RegistrationConfirmed, model.RegistrationPaid}},
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count committed registrations: %w", err)
	}

	return count, nil
}

func (r *mongoRegistrationRepository) CountActiveLocks(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	// A hold is active through its expiry instant.
	filter := bson.M{
		"session_id":      sessionID,
		"status":          model.RegistrationPending,
		"seat_lock_until": bson.M{"$gte": now},
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count active seat locks: %w", err)
	}

	return count, nil
}

func (r *mongoRegistrationRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Registration, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":          model.RegistrationPending,
		"seat_lock_until": bson.M{"$lt": now},
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "seat_lock_until", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired registrations: %w", err)
	}
	defer cursor.Close(ctx)

	var registrations []*model.Registration
	if err = cursor.All(ctx, &registrations); err != nil {
		return nil, fmt.Errorf("failed to decode expired registrations: %w", err)
	}

	return registrations, nil
}

func (r *mongoRegistrationRepository) CancelExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", registrationserrors.ErrInvalidID, id)
	}

	// The filter repeats the expiry condition so an operator confirming
	// the registration between scan and cancel wins the race.
	filter := bson.M{
		"_id":             objectID,
		"status":          model.RegistrationPending,
		"seat_lock_until": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.RegistrationCanceled,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
		"$unset": bson.M{"seat_lock_until": ""},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to cancel expired registration: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *mongoRegistrationRepository) ReassignStudent(ctx context.Context, fromStudentIDs []string, toStudentID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"student_id": bson.M{"$in": fromStudentIDs}}
	update := bson.M{
		"$set": bson.M{
			"student_id": toStudentID,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("%w: student %s", registrationserrors.ErrAlreadyRegistered, toStudentID)
		}
		return 0, fmt.Errorf("failed to reassign registrations: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *mongoRegistrationRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete registrations for session: %w", err)
	}

	return result.DeletedCount, nil
}

func (r *mongoRegistrationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
