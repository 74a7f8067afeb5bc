package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"regdesk/internal/notify"
	registrationserrors "regdesk/internal/registrations/errors"
	"regdesk/internal/registrations/ledger"
	"regdesk/internal/registrations/repository"
	"regdesk/internal/registrations/seatlock"
	"regdesk/internal/registrations/validator"
	sessionserrors "regdesk/internal/sessions/errors"
	sessionsrepo "regdesk/internal/sessions/repository"
	studentssvc "regdesk/internal/students/service"
	"regdesk/pkg/config"
	apperrors "regdesk/pkg/errors"
	"regdesk/pkg/model"
)

// searchResolveLimit bounds how many student ids a listing search may
// resolve before filtering registrations. It is deliberately far above
// the page size so a broad term does not silently drop matches.
const searchResolveLimit = 1000

type RegistrationService interface {
	// Create handles the public registration form: it resolves the
	// student, checks the session's capacity under the per-session lock
	// and leaves a pending registration holding a seat.
	Create(ctx context.Context, req *model.RegistrationRequest) (*model.RegistrationView, error)
	GetByID(ctx context.Context, id string) (*model.RegistrationView, error)
	List(ctx context.Context, filter *model.RegistrationFilter, limit int, offset int64) ([]*model.RegistrationView, int64, error)
	// UpdateStatus moves a registration through its lifecycle and keeps
	// the session seat count in step.
	UpdateStatus(ctx context.Context, id string, update *model.RegistrationUpdate) (*model.Registration, error)
	Cancel(ctx context.Context, id string) (*model.Registration, error)
	CancelByPaymentRef(ctx context.Context, paymentRef string) (*model.Registration, error)
}

type registrationService struct {
	repo        repository.RegistrationRepository
	sessionRepo sessionsrepo.SessionRepository
	students    studentssvc.StudentService
	seats       *seatlock.Manager
	ledger      *ledger.Ledger
	validator   *validator.RegistrationValidator
	notifier    notify.Notifier
	receipts    notify.ReceiptRequester
	cfg         *config.Config
	now         func() time.Time
}

func NewRegistrationService(
	repo repository.RegistrationRepository,
	sessionRepo sessionsrepo.SessionRepository,
	students studentssvc.StudentService,
	seats *seatlock.Manager,
	seatLedger *ledger.Ledger,
	validator *validator.RegistrationValidator,
	notifier notify.Notifier,
	receipts notify.ReceiptRequester,
	cfg *config.Config,
) RegistrationService {
	return &registrationService{
		repo:        repo,
		sessionRepo: sessionRepo,
		students:    students,
		seats:       seats,
		ledger:      seatLedger,
		validator:   validator,
		notifier:    notifier,
		receipts:    receipts,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *registrationService) Create(ctx context.Context, req *model.RegistrationRequest) (*model.RegistrationView, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Registration request validation failed",
			"session_id", req.SessionID,
			"error", err,
		)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	session, err := s.findSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusPublished {
		return nil, apperrors.Conflict("Session is not open for registration")
	}
	if !session.RegistrationOpen(s.now().UTC()) {
		return nil, apperrors.Conflict("Registration window for this session is closed")
	}

	student, err := s.students.Resolve(ctx, &req.Student)
	if err != nil {
		return nil, err
	}

	var registration *model.Registration
	err = s.seats.WithSessionLock(ctx, session.ID, func(ctx context.Context) error {
		existing, err := s.repo.FindBySessionAndStudent(ctx, session.ID, student.ID)
		if err != nil && !errors.Is(err, registrationserrors.ErrNotFound) {
			return apperrors.Internal("Failed to check existing registration", err)
		}

		if existing != nil {
			switch {
			case existing.Committed():
				return apperrors.Conflict("Student is already registered for this session")
			case existing.Status == model.RegistrationPending && !s.seats.IsExpired(existing):
				return apperrors.Conflict("A registration for this student is already pending")
			default:
				// Canceled row or lapsed hold: revive it in place with
				// a fresh hold instead of fighting the unique index.
				until, err := s.seats.HoldSeat(ctx, session)
				if err != nil {
					return s.mapHoldError(err)
				}
				revived := &model.Registration{
					SessionID:     session.ID,
					StudentID:     student.ID,
					Status:        model.RegistrationPending,
					Amount:        session.Price,
					Currency:      session.Currency,
					SeatLockUntil: until,
				}
				if err := s.repo.Revive(ctx, existing.ID, existing.Status, revived); err != nil {
					if errors.Is(err, registrationserrors.ErrAlreadyRegistered) {
						return apperrors.Conflict("Student is already registered for this session")
					}
					return apperrors.Internal("Failed to revive registration", err)
				}
				registration = revived
				return nil
			}
		}

		until, err := s.seats.HoldSeat(ctx, session)
		if err != nil {
			return s.mapHoldError(err)
		}

		registration = &model.Registration{
			SessionID:     session.ID,
			StudentID:     student.ID,
			Status:        model.RegistrationPending,
			Amount:        session.Price,
			Currency:      session.Currency,
			SeatLockUntil: until,
		}
		if err := s.repo.Create(ctx, registration); err != nil {
			if errors.Is(err, registrationserrors.ErrAlreadyRegistered) {
				return apperrors.Conflict("Student is already registered for this session")
			}
			return apperrors.Internal("Failed to create registration", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, registrationserrors.ErrSessionLocked) {
			return nil, apperrors.Conflict("Session is busy, please retry")
		}
		return nil, err
	}

	if _, err := s.ledger.Resync(ctx, session.ID); err != nil {
		s.cfg.Log.Error("Failed to resync session after create",
			"session_id", session.ID,
			"error", err,
		)
	}

	s.cfg.Log.Info("Registration created",
		"registration_id", registration.ID,
		"session_id", session.ID,
		"student_id", student.ID,
		"seat_lock_until", registration.SeatLockUntil,
	)
	event := s.event(registration, student, session)
	s.notifier.RegistrationEvent(ctx, notify.EventRegistrationReceived, event)
	s.receipts.RequestReceipt(ctx, event)

	return &model.RegistrationView{
		Registration: registration,
		Student:      student,
		Session:      session,
	}, nil
}

func (s *registrationService) GetByID(ctx context.Context, id string) (*model.RegistrationView, error) {
	registration, err := s.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &model.RegistrationView{Registration: registration}
	if student, err := s.students.GetByID(ctx, registration.StudentID); err == nil {
		view.Student = student
	}
	if session, err := s.sessionRepo.FindByID(ctx, registration.SessionID); err == nil {
		view.Session = session
	}
	return view, nil
}

func (s *registrationService) List(ctx context.Context, filter *model.RegistrationFilter, limit int, offset int64) ([]*model.RegistrationView, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	if filter == nil {
		filter = &model.RegistrationFilter{}
	}
	if filter.Status != "" && !model.ValidRegistrationStatus(filter.Status) {
		return nil, 0, apperrors.InvalidInput("Unknown registration status filter")
	}
	if filter.Search != "" {
		ids, err := s.students.SearchIDs(ctx, filter.Search, searchResolveLimit)
		if err != nil {
			return nil, 0, err
		}
		if len(ids) == 0 {
			return []*model.RegistrationView{}, 0, nil
		}
		filter.StudentIDs = ids
	}

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var registrations []*model.Registration
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count registrations", "error", err)
			errCount = apperrors.Internal("Failed to count registrations", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		registrations, err = s.repo.FindAll(sharedCtx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list registrations",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve registrations", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	views, err := s.buildViews(ctx, registrations)
	if err != nil {
		return nil, 0, err
	}
	return views, count, nil
}

func (s *registrationService) UpdateStatus(ctx context.Context, id string, update *model.RegistrationUpdate) (*model.Registration, error) {
	if err := s.validator.ValidateUpdate(update); err != nil {
		return nil, apperrors.Validation("Registration update validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	registration, err := s.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}

	target := update.Status
	if target == "" {
		target = registration.Status
	}
	if err := s.validator.ValidateTransition(registration.Status, target); err != nil {
		if errors.Is(err, registrationserrors.ErrInvalidTransition) {
			return nil, apperrors.InvalidInput(err.Error())
		}
		return nil, err
	}

	// Confirming a pending row whose hold already lapsed needs a fresh
	// capacity check; the seat may have gone to someone else meanwhile.
	committing := target != registration.Status &&
		(target == model.RegistrationConfirmed || target == model.RegistrationPaid) &&
		registration.Status == model.RegistrationPending

	apply := func(ctx context.Context) error {
		if committing && s.seats.IsExpired(registration) {
			session, err := s.findSession(ctx, registration.SessionID)
			if err != nil {
				return err
			}
			if _, err := s.seats.HoldSeat(ctx, session); err != nil {
				return s.mapHoldError(err)
			}
		}

		updated, err := s.repo.Update(ctx, id, s.buildUpdate(target, update))
		if err != nil {
			if errors.Is(err, registrationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Registration", id)
			}
			return apperrors.Internal("Failed to update registration", err)
		}
		registration = updated
		return nil
	}

	if committing {
		err = s.seats.WithSessionLock(ctx, registration.SessionID, apply)
		if errors.Is(err, registrationserrors.ErrSessionLocked) {
			return nil, apperrors.Conflict("Session is busy, please retry")
		}
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Resync(ctx, registration.SessionID); err != nil {
		s.cfg.Log.Error("Failed to resync session after status change",
			"session_id", registration.SessionID,
			"error", err,
		)
	}

	s.cfg.Log.Info("Registration status updated",
		"registration_id", registration.ID,
		"session_id", registration.SessionID,
		"status", registration.Status,
	)
	s.publishLifecycle(ctx, registration)

	return registration, nil
}

func (s *registrationService) Cancel(ctx context.Context, id string) (*model.Registration, error) {
	return s.UpdateStatus(ctx, id, &model.RegistrationUpdate{Status: model.RegistrationCanceled})
}

func (s *registrationService) CancelByPaymentRef(ctx context.Context, paymentRef string) (*model.Registration, error) {
	if paymentRef == "" {
		return nil, apperrors.InvalidInput("Payment reference cannot be empty")
	}

	registration, err := s.repo.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		if errors.Is(err, registrationserrors.ErrNotFound) {
			return nil, apperrors.NotFound("No registration found for payment reference")
		}
		s.cfg.Log.Error("Failed to find registration by payment ref",
			"payment_ref", paymentRef,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve registration", err)
	}

	return s.Cancel(ctx, registration.ID)
}

func (s *registrationService) buildUpdate(target string, update *model.RegistrationUpdate) bson.M {
	set := bson.M{"status": target}
	if update.Amount != nil {
		set["amount"] = *update.Amount
	}
	if update.PaymentMethod != "" {
		set["payment_method"] = update.PaymentMethod
	}
	if update.PaymentRef != "" {
		set["payment_ref"] = update.PaymentRef
	}
	if update.Notes != nil {
		set["notes"] = *update.Notes
	}

	doc := bson.M{"$set": set}
	if target != model.RegistrationPending {
		// Only pending rows carry a seat hold.
		doc["$unset"] = bson.M{"seat_lock_until": ""}
	}
	return doc
}

func (s *registrationService) buildViews(ctx context.Context, registrations []*model.Registration) ([]*model.RegistrationView, error) {
	views := make([]*model.RegistrationView, 0, len(registrations))
	if len(registrations) == 0 {
		return views, nil
	}

	studentIDs := make([]string, 0, len(registrations))
	seenStudents := make(map[string]struct{})
	sessionIDs := make(map[string]struct{})
	for _, registration := range registrations {
		if _, ok := seenStudents[registration.StudentID]; !ok {
			seenStudents[registration.StudentID] = struct{}{}
			studentIDs = append(studentIDs, registration.StudentID)
		}
		sessionIDs[registration.SessionID] = struct{}{}
	}

	students, err := s.students.GetByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	studentByID := make(map[string]*model.Student, len(students))
	for _, student := range students {
		studentByID[student.ID] = student
	}

	sessionByID := make(map[string]*model.Session, len(sessionIDs))
	for sessionID := range sessionIDs {
		session, err := s.sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, sessionserrors.ErrNotFound) {
				continue
			}
			return nil, apperrors.Internal("Failed to load session for listing", err)
		}
		sessionByID[sessionID] = session
	}

	for _, registration := range registrations {
		views = append(views, &model.RegistrationView{
			Registration: registration,
			Student:      studentByID[registration.StudentID],
			Session:      sessionByID[registration.SessionID],
		})
	}
	return views, nil
}

func (s *registrationService) findSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sessionserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Session", id)
		}
		if errors.Is(err, sessionserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid session ID format")
		}
		s.cfg.Log.Error("Failed to load session",
			"session_id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve session", err)
	}
	return session, nil
}

func (s *registrationService) findRegistration(ctx context.Context, id string) (*model.Registration, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Registration ID cannot be empty")
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, apperrors.InvalidInput("Invalid registration ID format")
	}

	registration, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, registrationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Registration", id)
		}
		if errors.Is(err, registrationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid registration ID format")
		}
		s.cfg.Log.Error("Failed to get registration by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve registration", err)
	}
	return registration, nil
}

func (s *registrationService) mapHoldError(err error) error {
	if errors.Is(err, registrationserrors.ErrNoSeats) {
		return apperrors.CapacityFull("Session is full")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to check seat availability", err)
}

func (s *registrationService) publishLifecycle(ctx context.Context, registration *model.Registration) {
	eventType := notify.EventTypeForStatus(registration.Status)
	if eventType == "" {
		return
	}

	event := s.event(registration, nil, nil)
	if student, err := s.students.GetByID(ctx, registration.StudentID); err == nil {
		event.StudentName = student.FullName
		event.StudentEmail = student.Email
		event.StudentPhone = student.Phone
	}
	if session, err := s.sessionRepo.FindByID(ctx, registration.SessionID); err == nil {
		event.SessionTitle = session.Title
	}

	s.notifier.RegistrationEvent(ctx, eventType, event)
	if registration.Status == model.RegistrationPaid {
		s.receipts.RequestReceipt(ctx, event)
	}
}

func (s *registrationService) event(registration *model.Registration, student *model.Student, session *model.Session) *notify.RegistrationEvent {
	event := &notify.RegistrationEvent{
		RegistrationID: registration.ID,
		SessionID:      registration.SessionID,
		StudentID:      registration.StudentID,
		Status:         registration.Status,
		Amount:         registration.Amount,
		Currency:       registration.Currency,
		PaymentRef:     registration.PaymentRef,
	}
	if student != nil {
		event.StudentName = student.FullName
		event.StudentEmail = student.Email
		event.StudentPhone = student.Phone
	}
	if session != nil {
		event.SessionTitle = session.Title
	}
	return event
}
