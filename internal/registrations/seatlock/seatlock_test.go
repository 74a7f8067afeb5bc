package seatlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	registrationserrors "regdesk/internal/registrations/errors"
	"regdesk/internal/registrations/ledger"
	"regdesk/pkg/config"
	mongotx "regdesk/pkg/db/mongo"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

type mockRegistrationRepo struct {
	countCommittedFunc     func(ctx context.Context, sessionID string) (int64, error)
	countActiveLocksFunc   func(ctx context.Context, sessionID string, now time.Time) (int64, error)
	findExpiredPendingFunc func(ctx context.Context, now time.Time, limit int) ([]*model.Registration, error)
	cancelExpiredFunc      func(ctx context.Context, id string, now time.Time) (bool, error)
}

func (m *mockRegistrationRepo) Create(ctx context.Context, registration *model.Registration) error {
	return nil
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id string) (*model.Registration, error) {
	return nil, nil
}

func (m *mockRegistrationRepo) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.Registration, error) {
	return nil, nil
}

func (m *mockRegistrationRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*model.Registration, error) {
	return nil, nil
}

func (m *mockRegistrationRepo) FindAll(ctx context.Context, filter *model.RegistrationFilter, limit int, offset int64) ([]*model.Registration, error) {
	return nil, nil
}

func (m *mockRegistrationRepo) Count(ctx context.Context, filter *model.RegistrationFilter) (int64, error) {
	return 0, nil
}

func (m *mockRegistrationRepo) Update(ctx context.Context, id string, update bson.M) (*model.Registration, error) {
	return nil, nil
}

func (m *mockRegistrationRepo) Revive(ctx context.Context, id, priorStatus string, reg *model.Registration) error {
	return nil
}

func (m *mockRegistrationRepo) CountCommitted(ctx context.Context, sessionID string) (int64, error) {
	if m.countCommittedFunc != nil {
		return m.countCommittedFunc(ctx, sessionID)
	}
	return 0, nil
}

func (m *mockRegistrationRepo) CountActiveLocks(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	if m.countActiveLocksFunc != nil {
		return m.countActiveLocksFunc(ctx, sessionID, now)
	}
	return 0, nil
}

func (m *mockRegistrationRepo) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Registration, error) {
	if m.findExpiredPendingFunc != nil {
		return m.findExpiredPendingFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *mockRegistrationRepo) CancelExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	if m.cancelExpiredFunc != nil {
		return m.cancelExpiredFunc(ctx, id, now)
	}
	return false, nil
}

func (m *mockRegistrationRepo) ReassignStudent(ctx context.Context, fromStudentIDs []string, toStudentID string) (int64, error) {
	return 0, nil
}

func (m *mockRegistrationRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (m *mockRegistrationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return nil
}

type mockSessionRepo struct {
	seatsTaken map[string]int64
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error { return nil }

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindAll(ctx context.Context, filter model.SessionFilter, limit int, offset int64) ([]*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) Count(ctx context.Context, filter model.SessionFilter) (int64, error) {
	return 0, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, id string, session *model.Session) (*mongo.UpdateResult, error) {
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockSessionRepo) SetSeatsTaken(ctx context.Context, id string, count int64) error {
	if m.seatsTaken == nil {
		m.seatsTaken = make(map[string]int64)
	}
	m.seatsTaken[id] = count
	return nil
}

func (m *mockSessionRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return nil
}

type mockLockRepo struct {
	acquireFunc func(ctx context.Context, sessionID string, ttl time.Duration) error
	released    []string
}

func (m *mockLockRepo) Acquire(ctx context.Context, sessionID string, ttl time.Duration) error {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, sessionID, ttl)
	}
	return nil
}

func (m *mockLockRepo) Release(ctx context.Context, sessionID string) error {
	m.released = append(m.released, sessionID)
	return nil
}

func testManager(regRepo *mockRegistrationRepo, lockRepo *mockLockRepo) *Manager {
	return testManagerWithSessions(regRepo, lockRepo, &mockSessionRepo{})
}

func testManagerWithSessions(regRepo *mockRegistrationRepo, lockRepo *mockLockRepo, sessionRepo *mockSessionRepo) *Manager {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		Log:              log,
		WriteTimeout:     5 * time.Second,
		SeatLockDuration: 10 * time.Minute,
		SessionLockTTL:   10 * time.Second,
	}
	seatLedger := ledger.New(regRepo, sessionRepo, log)
	return NewManager(cfg, lockRepo, regRepo, seatLedger, log)
}

func TestHoldSeat_FullSession(t *testing.T) {
	m := testManager(&mockRegistrationRepo{
		countCommittedFunc: func(ctx context.Context, sessionID string) (int64, error) {
			return 8, nil
		},
		countActiveLocksFunc: func(ctx context.Context, sessionID string, now time.Time) (int64, error) {
			return 2, nil
		},
	}, &mockLockRepo{})

	_, err := m.HoldSeat(context.Background(), &model.Session{ID: "s1", TotalSeats: 10})
	if !errors.Is(err, registrationserrors.ErrNoSeats) {
		t.Fatalf("expected ErrNoSeats, got %v", err)
	}
}

func TestHoldSeat_UnlimitedSession(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(&mockRegistrationRepo{}, &mockLockRepo{})
	m.now = func() time.Time { return fixed }

	until, err := m.HoldSeat(context.Background(), &model.Session{ID: "s1", TotalSeats: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := fixed.Add(10 * time.Minute)
	if until == nil || !until.Equal(want) {
		t.Errorf("expected hold until %v, got %v", want, until)
	}
}

func TestHoldSeat_LastSeat(t *testing.T) {
	m := testManager(&mockRegistrationRepo{
		countCommittedFunc: func(ctx context.Context, sessionID string) (int64, error) {
			return 7, nil
		},
		countActiveLocksFunc: func(ctx context.Context, sessionID string, now time.Time) (int64, error) {
			return 2, nil
		},
	}, &mockLockRepo{})

	until, err := m.HoldSeat(context.Background(), &model.Session{ID: "s1", TotalSeats: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if until == nil {
		t.Error("expected a hold expiry")
	}
}

func TestIsExpired(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(&mockRegistrationRepo{}, &mockLockRepo{})
	m.now = func() time.Time { return fixed }

	past := fixed.Add(-time.Minute)
	future := fixed.Add(time.Minute)

	tests := []struct {
		name string
		reg  *model.Registration
		want bool
	}{
		{"pending with live hold", &model.Registration{Status: model.RegistrationPending, SeatLockUntil: &future}, false},
		{"pending with lapsed hold", &model.Registration{Status: model.RegistrationPending, SeatLockUntil: &past}, true},
		{"hold at exactly now is still live", &model.Registration{Status: model.RegistrationPending, SeatLockUntil: &fixed}, false},
		{"pending without hold", &model.Registration{Status: model.RegistrationPending}, true},
		{"confirmed never expires", &model.Registration{Status: model.RegistrationConfirmed, SeatLockUntil: &past}, false},
		{"canceled never expires", &model.Registration{Status: model.RegistrationCanceled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsExpired(tt.reg); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWithSessionLock_ReleasesAfterRun(t *testing.T) {
	lockRepo := &mockLockRepo{}
	m := testManager(&mockRegistrationRepo{}, lockRepo)

	ran := false
	err := m.WithSessionLock(context.Background(), "s1", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected fn to run")
	}
	if len(lockRepo.released) != 1 || lockRepo.released[0] != "s1" {
		t.Errorf("expected lock s1 released once, got %v", lockRepo.released)
	}
}

func TestWithSessionLock_ReleasesOnError(t *testing.T) {
	lockRepo := &mockLockRepo{}
	m := testManager(&mockRegistrationRepo{}, lockRepo)

	wantErr := errors.New("boom")
	err := m.WithSessionLock(context.Background(), "s1", func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(lockRepo.released) != 1 {
		t.Errorf("expected lock released despite error, got %v", lockRepo.released)
	}
}

func TestWithSessionLock_HeldLock(t *testing.T) {
	lockRepo := &mockLockRepo{
		acquireFunc: func(ctx context.Context, sessionID string, ttl time.Duration) error {
			return registrationserrors.ErrSessionLocked
		},
	}
	m := testManager(&mockRegistrationRepo{}, lockRepo)

	err := m.WithSessionLock(context.Background(), "s1", func(ctx context.Context) error {
		t.Error("fn should not run while lock is held")
		return nil
	})
	if !errors.Is(err, registrationserrors.ErrSessionLocked) {
		t.Fatalf("expected ErrSessionLocked, got %v", err)
	}
	if len(lockRepo.released) != 0 {
		t.Errorf("lock was never acquired, nothing to release, got %v", lockRepo.released)
	}
}

func TestPurgeExpired_CancelsAndResyncs(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := []*model.Registration{
		{ID: "r1", SessionID: "s1", Status: model.RegistrationPending},
		{ID: "r2", SessionID: "s1", Status: model.RegistrationPending},
		{ID: "r3", SessionID: "s2", Status: model.RegistrationPending},
	}

	var canceled []string
	regRepo := &mockRegistrationRepo{
		findExpiredPendingFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Registration, error) {
			return expired, nil
		},
		cancelExpiredFunc: func(ctx context.Context, id string, now time.Time) (bool, error) {
			canceled = append(canceled, id)
			return true, nil
		},
	}
	m := testManager(regRepo, &mockLockRepo{})
	m.now = func() time.Time { return fixed }

	purged, err := m.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 3 {
		t.Errorf("expected 3 purged, got %d", purged)
	}
	if len(canceled) != 3 {
		t.Errorf("expected 3 cancels, got %v", canceled)
	}
}

func TestPurgeExpired_SkipsRowsChangedMeanwhile(t *testing.T) {
	expired := []*model.Registration{
		{ID: "r1", SessionID: "s1", Status: model.RegistrationPending},
		{ID: "r2", SessionID: "s1", Status: model.RegistrationPending},
	}

	regRepo := &mockRegistrationRepo{
		findExpiredPendingFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Registration, error) {
			return expired, nil
		},
		cancelExpiredFunc: func(ctx context.Context, id string, now time.Time) (bool, error) {
			// r2 was confirmed by an operator between scan and cancel
			return id == "r1", nil
		},
	}
	m := testManager(regRepo, &mockLockRepo{})

	purged, err := m.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}
}

func TestPurgeExpired_SurvivesCancelFailure(t *testing.T) {
	expired := []*model.Registration{
		{ID: "r1", SessionID: "s1", Status: model.RegistrationPending},
		{ID: "r2", SessionID: "s2", Status: model.RegistrationPending},
	}

	var canceled []string
	regRepo := &mockRegistrationRepo{
		findExpiredPendingFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Registration, error) {
			return expired, nil
		},
		cancelExpiredFunc: func(ctx context.Context, id string, now time.Time) (bool, error) {
			if id == "r1" {
				return false, errors.New("write conflict")
			}
			canceled = append(canceled, id)
			return true, nil
		},
	}
	sessionRepo := &mockSessionRepo{}
	m := testManagerWithSessions(regRepo, &mockLockRepo{}, sessionRepo)

	purged, err := m.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged after one failure, got %d", purged)
	}
	if len(canceled) != 1 || canceled[0] != "r2" {
		t.Errorf("expected r2 processed despite r1 failing, got %v", canceled)
	}
	if _, ok := sessionRepo.seatsTaken["s2"]; !ok {
		t.Error("expected s2 resynced after its hold was purged")
	}
	if _, ok := sessionRepo.seatsTaken["s1"]; ok {
		t.Error("s1 had nothing purged, no resync expected")
	}
}

func TestPurgeExpired_NothingToDo(t *testing.T) {
	m := testManager(&mockRegistrationRepo{}, &mockLockRepo{})

	purged, err := m.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 0 {
		t.Errorf("expected 0 purged, got %d", purged)
	}
}
