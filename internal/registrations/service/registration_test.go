package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"regdesk/internal/notify"
	registrationserrors "regdesk/internal/registrations/errors"
	"regdesk/internal/registrations/ledger"
	"regdesk/internal/registrations/seatlock"
	"regdesk/internal/registrations/validator"
	sessionserrors "regdesk/internal/sessions/errors"
	"regdesk/pkg/config"
	mongotx "regdesk/pkg/db/mongo"
	apperrors "regdesk/pkg/errors"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

const (
	testSessionID = "507f1f77bcf86cd799439011"
	testStudentID = "507f1f77bcf86cd799439012"
	testRegID     = "507f1f77bcf86cd799439013"
)

type mockRegistrationRepo struct {
	createFunc           func(ctx context.Context, registration *model.Registration) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Registration, error)
	findBySessionStudent func(ctx context.Context, sessionID, studentID string) (*model.Registration, error)
	findByPaymentRefFunc func(ctx context.Context, paymentRef string) (*model.Registration, error)
	updateFunc           func(ctx context.Context, id string, update bson.M) (*model.Registration, error)
	reviveFunc           func(ctx context.Context, id, priorStatus string, reg *model.Registration) error
	countCommittedFunc   func(ctx context.Context, sessionID string) (int64, error)
	countActiveLocksFunc func(ctx context.Context, sessionID string, now time.Time) (int64, error)
}

func (m *mockRegistrationRepo) Create(ctx context.Context, registration *model.Registration) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, registration)
	}
	registration.ID = testRegID
	return nil
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id string) (*model.Registration, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, registrationserrors.ErrNotFound
}

func (m *mockRegistrationRepo) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.Registration, error) {
	if m.findBySessionStudent != nil {
		return m.findBySessionStudent(ctx, sessionID, studentID)
	}
	return nil, registrationserrors.ErrNotFound
}

func (m *mockRegistrationRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*model.Registration, error) {
	if m.findByPaymentRefFunc != nil {
		return m.findByPaymentRefFunc(ctx, paymentRef)
	}
	return nil, registrationserrors.ErrNotFound
}

func (m *mockRegistrationRepo) FindAll(ctx context.Context, filter *model.RegistrationFilter, limit int, offset int64) ([]*model.Registration, error) {
	return nil, nil
}

func (m *mockRegistrationRepo) Count(ctx context.Context, filter *model.RegistrationFilter) (int64, error) {
	return 0, nil
}

func (m *mockRegistrationRepo) Update(ctx context.Context, id string, update bson.M) (*model.Registration, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, update)
	}
	return nil, registrationserrors.ErrNotFound
}

func (m *mockRegistrationRepo) Revive(ctx context.Context, id, priorStatus string, reg *model.Registration) error {
	if m.reviveFunc != nil {
		return m.reviveFunc(ctx, id, priorStatus, reg)
	}
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
	return nil, nil
}

func (m *mockRegistrationRepo) CancelExpired(ctx context.Context, id string, now time.Time) (bool, error) {
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
	findByIDFunc func(ctx context.Context, id string) (*model.Session, error)
	seatsTaken   map[string]int64
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error { return nil }

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, sessionserrors.ErrNotFound
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

type mockLockRepo struct{}

func (m *mockLockRepo) Acquire(ctx context.Context, sessionID string, ttl time.Duration) error {
	return nil
}

func (m *mockLockRepo) Release(ctx context.Context, sessionID string) error { return nil }

type mockStudentService struct {
	resolveFunc   func(ctx context.Context, fields *model.StudentFields) (*model.Student, error)
	getByIDFunc   func(ctx context.Context, id string) (*model.Student, error)
	searchIDsFunc func(ctx context.Context, term string, limit int) ([]string, error)
}

func (m *mockStudentService) Resolve(ctx context.Context, fields *model.StudentFields) (*model.Student, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, fields)
	}
	return &model.Student{ID: testStudentID, FullName: fields.FullName}, nil
}

func (m *mockStudentService) GetByID(ctx context.Context, id string) (*model.Student, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &model.Student{ID: id}, nil
}

func (m *mockStudentService) GetByIDs(ctx context.Context, ids []string) ([]*model.Student, error) {
	students := make([]*model.Student, 0, len(ids))
	for _, id := range ids {
		students = append(students, &model.Student{ID: id})
	}
	return students, nil
}

func (m *mockStudentService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Student, int64, error) {
	return nil, 0, nil
}

func (m *mockStudentService) Update(ctx context.Context, id string, student *model.Student) error {
	return nil
}

func (m *mockStudentService) Merge(ctx context.Context, req *model.MergeRequest) (int64, error) {
	return 0, nil
}

func (m *mockStudentService) SearchIDs(ctx context.Context, term string, limit int) ([]string, error) {
	if m.searchIDsFunc != nil {
		return m.searchIDsFunc(ctx, term, limit)
	}
	return nil, nil
}

// eventRecorder captures emitted lifecycle events and receipt requests.
type eventRecorder struct {
	events   []string
	receipts int
}

func (r *eventRecorder) RegistrationEvent(_ context.Context, eventType string, _ *notify.RegistrationEvent) {
	r.events = append(r.events, eventType)
}

func (r *eventRecorder) RequestReceipt(_ context.Context, _ *notify.RegistrationEvent) {
	r.receipts++
}

func publishedSession(totalSeats int) *model.Session {
	return &model.Session{
		ID:         testSessionID,
		Title:      "Prep Intensive",
		Type:       model.SessionTypePrep,
		TotalSeats: totalSeats,
		Price:      1200,
		Currency:   "MAD",
		Status:     model.SessionStatusPublished,
	}
}

func testService(regRepo *mockRegistrationRepo, sessionRepo *mockSessionRepo, students *mockStudentService) RegistrationService {
	return testServiceWithEvents(regRepo, sessionRepo, students, &eventRecorder{})
}

func testServiceWithEvents(regRepo *mockRegistrationRepo, sessionRepo *mockSessionRepo, students *mockStudentService, events *eventRecorder) RegistrationService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		Log:              log,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
		SeatLockDuration: 10 * time.Minute,
		SessionLockTTL:   10 * time.Second,
	}
	seatLedger := ledger.New(regRepo, sessionRepo, log)
	seats := seatlock.NewManager(cfg, &mockLockRepo{}, regRepo, seatLedger, log)
	return NewRegistrationService(
		regRepo,
		sessionRepo,
		students,
		seats,
		seatLedger,
		validator.NewRegistrationValidator(log),
		events,
		events,
		cfg,
	)
}

func validRequest() *model.RegistrationRequest {
	return &model.RegistrationRequest{
		SessionID: testSessionID,
		Student: model.StudentFields{
			FullName: "Amina El Fassi",
			Email:    "amina@example.com",
			Phone:    "+212612345678",
			CIN:      "AB123456",
		},
	}
}

func TestCreate_HappyPath(t *testing.T) {
	var created *model.Registration
	regRepo := &mockRegistrationRepo{
		createFunc: func(ctx context.Context, registration *model.Registration) error {
			registration.ID = testRegID
			created = registration
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}

	events := &eventRecorder{}
	svc := testServiceWithEvents(regRepo, sessionRepo, &mockStudentService{}, events)

	view, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Registration.ID != testRegID {
		t.Errorf("expected registration id %s, got %s", testRegID, view.Registration.ID)
	}
	if created.Status != model.RegistrationPending {
		t.Errorf("expected pending status, got %s", created.Status)
	}
	if created.SeatLockUntil == nil {
		t.Error("expected a seat hold on the new registration")
	}
	if created.Amount != 1200 || created.Currency != "MAD" {
		t.Errorf("expected amount from session price, got %f %s", created.Amount, created.Currency)
	}
	if _, resynced := sessionRepo.seatsTaken[testSessionID]; !resynced {
		t.Error("expected seats_taken resync after create")
	}
	if len(events.events) != 1 || events.events[0] != notify.EventRegistrationReceived {
		t.Errorf("expected a received event, got %v", events.events)
	}
	if events.receipts != 1 {
		t.Errorf("expected one receipt request at create, got %d", events.receipts)
	}
}

func TestCreate_SessionFull(t *testing.T) {
	regRepo := &mockRegistrationRepo{
		countCommittedFunc: func(ctx context.Context, sessionID string) (int64, error) {
			return 10, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}

	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	_, err := svc.Create(context.Background(), validRequest())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeCapacityFull {
		t.Fatalf("expected capacity full error, got %v", err)
	}
}

func TestCreate_HoldsCountAgainstCapacity(t *testing.T) {
	regRepo := &mockRegistrationRepo{
		countCommittedFunc: func(ctx context.Context, sessionID string) (int64, error) {
			return 5, nil
		},
		countActiveLocksFunc: func(ctx context.Context, sessionID string, now time.Time) (int64, error) {
			return 5, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}

	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	_, err := svc.Create(context.Background(), validRequest())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeCapacityFull {
		t.Fatalf("expected capacity full error with live holds, got %v", err)
	}
}

func TestCreate_UnlimitedSessionNeverFull(t *testing.T) {
	regRepo := &mockRegistrationRepo{
		countCommittedFunc: func(ctx context.Context, sessionID string) (int64, error) {
			t.Error("unlimited session should skip the seat count")
			return 0, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(0), nil
		},
	}

	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	view, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Registration.Status != model.RegistrationPending {
		t.Errorf("expected pending, got %s", view.Registration.Status)
	}
}

func TestCreate_SessionNotPublished(t *testing.T) {
	for _, status := range []string{model.SessionStatusDraft, model.SessionStatusClosed} {
		t.Run(status, func(t *testing.T) {
			sessionRepo := &mockSessionRepo{
				findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
					session := publishedSession(10)
					session.Status = status
					return session, nil
				},
			}
			svc := testService(&mockRegistrationRepo{}, sessionRepo, &mockStudentService{})

			_, err := svc.Create(context.Background(), validRequest())
			appErr := apperrors.AsAppError(err)
			if appErr == nil || appErr.Code != apperrors.CodeConflict {
				t.Fatalf("expected conflict for %s session, got %v", status, err)
			}
		})
	}
}

func TestCreate_SessionNotFound(t *testing.T) {
	svc := testService(&mockRegistrationRepo{}, &mockSessionRepo{}, &mockStudentService{})

	_, err := svc.Create(context.Background(), validRequest())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreate_RegistrationWindowClosed(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			session := publishedSession(10)
			session.RegEndsAt = &past
			return session, nil
		},
	}
	svc := testService(&mockRegistrationRepo{}, sessionRepo, &mockStudentService{})

	_, err := svc.Create(context.Background(), validRequest())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict for closed window, got %v", err)
	}
}

func TestCreate_DuplicateCommitted(t *testing.T) {
	regRepo := &mockRegistrationRepo{
		findBySessionStudent: func(ctx context.Context, sessionID, studentID string) (*model.Registration, error) {
			return &model.Registration{ID: testRegID, Status: model.RegistrationPaid}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}
	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	_, err := svc.Create(context.Background(), validRequest())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict for committed duplicate, got %v", err)
	}
}

func TestCreate_DuplicatePendingActiveHold(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	regRepo := &mockRegistrationRepo{
		findBySessionStudent: func(ctx context.Context, sessionID, studentID string) (*model.Registration, error) {
			return &model.Registration{ID: testRegID, Status: model.RegistrationPending, SeatLockUntil: &future}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}
	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	_, err := svc.Create(context.Background(), validRequest())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict for pending duplicate, got %v", err)
	}
}

func TestCreate_RevivesCanceledRow(t *testing.T) {
	var revivedPrior string
	regRepo := &mockRegistrationRepo{
		findBySessionStudent: func(ctx context.Context, sessionID, studentID string) (*model.Registration, error) {
			return &model.Registration{ID: testRegID, SessionID: testSessionID, StudentID: testStudentID, Status: model.RegistrationCanceled}, nil
		},
		reviveFunc: func(ctx context.Context, id, priorStatus string, reg *model.Registration) error {
			revivedPrior = priorStatus
			reg.ID = id
			return nil
		},
		createFunc: func(ctx context.Context, registration *model.Registration) error {
			t.Error("existing row should be revived, not re-created")
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}
	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	view, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revivedPrior != model.RegistrationCanceled {
		t.Errorf("expected revive from canceled, got %q", revivedPrior)
	}
	if view.Registration.Status != model.RegistrationPending {
		t.Errorf("expected pending after revive, got %s", view.Registration.Status)
	}
	if view.Registration.SeatLockUntil == nil {
		t.Error("expected fresh seat hold on revived registration")
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	svc := testService(&mockRegistrationRepo{}, &mockSessionRepo{}, &mockStudentService{})

	req := &model.RegistrationRequest{
		SessionID: testSessionID,
		Student:   model.StudentFields{FullName: "No Contact"},
	}
	_, err := svc.Create(context.Background(), req)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_RequiresCIN(t *testing.T) {
	svc := testService(&mockRegistrationRepo{}, &mockSessionRepo{}, &mockStudentService{})

	req := validRequest()
	req.Student.CIN = ""
	_, err := svc.Create(context.Background(), req)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error without cin, got %v", err)
	}
}

func TestList_SearchResolvesBeyondPageSize(t *testing.T) {
	var gotLimit int
	students := &mockStudentService{
		searchIDsFunc: func(ctx context.Context, term string, limit int) ([]string, error) {
			gotLimit = limit
			return []string{testStudentID}, nil
		},
	}
	svc := testService(&mockRegistrationRepo{}, &mockSessionRepo{}, students)

	_, _, err := svc.List(context.Background(), &model.RegistrationFilter{Search: "benali"}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != searchResolveLimit {
		t.Errorf("expected search to resolve up to %d students, got limit %d", searchResolveLimit, gotLimit)
	}
}

func TestUpdateStatus_ConfirmPending(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	pending := &model.Registration{
		ID:            testRegID,
		SessionID:     testSessionID,
		StudentID:     testStudentID,
		Status:        model.RegistrationPending,
		SeatLockUntil: &future,
	}

	var gotUpdate bson.M
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}
	regRepo := &mockRegistrationRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Registration, error) {
			return pending, nil
		},
		updateFunc: func(ctx context.Context, id string, update bson.M) (*model.Registration, error) {
			gotUpdate = update
			confirmed := *pending
			confirmed.Status = model.RegistrationConfirmed
			confirmed.SeatLockUntil = nil
			return &confirmed, nil
		},
	}
	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	updated, err := svc.UpdateStatus(context.Background(), testRegID, &model.RegistrationUpdate{Status: model.RegistrationConfirmed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.RegistrationConfirmed {
		t.Errorf("expected confirmed, got %s", updated.Status)
	}
	if _, hasUnset := gotUpdate["$unset"]; !hasUnset {
		t.Error("expected seat_lock_until unset when leaving pending")
	}
	if _, resynced := sessionRepo.seatsTaken[testSessionID]; !resynced {
		t.Error("expected seats_taken resync after status change")
	}
}

func TestUpdateStatus_ConfirmExpiredHoldRechecksCapacity(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	pending := &model.Registration{
		ID:            testRegID,
		SessionID:     testSessionID,
		StudentID:     testStudentID,
		Status:        model.RegistrationPending,
		SeatLockUntil: &past,
	}

	regRepo := &mockRegistrationRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Registration, error) {
			return pending, nil
		},
		countCommittedFunc: func(ctx context.Context, sessionID string) (int64, error) {
			return 10, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}
	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	_, err := svc.UpdateStatus(context.Background(), testRegID, &model.RegistrationUpdate{Status: model.RegistrationConfirmed})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeCapacityFull {
		t.Fatalf("expected capacity full confirming an expired hold on a full session, got %v", err)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	regRepo := &mockRegistrationRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Registration, error) {
			return &model.Registration{ID: testRegID, SessionID: testSessionID, Status: model.RegistrationCanceled}, nil
		},
	}
	svc := testService(regRepo, &mockSessionRepo{}, &mockStudentService{})

	_, err := svc.UpdateStatus(context.Background(), testRegID, &model.RegistrationUpdate{Status: model.RegistrationConfirmed})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeInvalidInput {
		t.Fatalf("expected invalid input for canceled->confirmed, got %v", err)
	}
}

func TestCancelByPaymentRef(t *testing.T) {
	paid := &model.Registration{
		ID:         testRegID,
		SessionID:  testSessionID,
		StudentID:  testStudentID,
		Status:     model.RegistrationPaid,
		PaymentRef: "BANK-123",
	}

	regRepo := &mockRegistrationRepo{
		findByPaymentRefFunc: func(ctx context.Context, paymentRef string) (*model.Registration, error) {
			if paymentRef != "BANK-123" {
				return nil, registrationserrors.ErrNotFound
			}
			return paid, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Registration, error) {
			return paid, nil
		},
		updateFunc: func(ctx context.Context, id string, update bson.M) (*model.Registration, error) {
			canceled := *paid
			canceled.Status = model.RegistrationCanceled
			return &canceled, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return publishedSession(10), nil
		},
	}
	svc := testService(regRepo, sessionRepo, &mockStudentService{})

	registration, err := svc.CancelByPaymentRef(context.Background(), "BANK-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registration.Status != model.RegistrationCanceled {
		t.Errorf("expected canceled, got %s", registration.Status)
	}
}

func TestCancelByPaymentRef_Unknown(t *testing.T) {
	svc := testService(&mockRegistrationRepo{}, &mockSessionRepo{}, &mockStudentService{})

	_, err := svc.CancelByPaymentRef(context.Background(), "NOPE")
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
