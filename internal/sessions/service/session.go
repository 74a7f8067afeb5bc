package service

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	"regdesk/internal/registrations/ledger"
	registrationsrepo "regdesk/internal/registrations/repository"
	sessionserrors "regdesk/internal/sessions/errors"
	"regdesk/internal/sessions/repository"
	"regdesk/internal/sessions/validator"
	"regdesk/pkg/config"
	apperrors "regdesk/pkg/errors"
	"regdesk/pkg/model"
	"regdesk/pkg/sanitizer"
)

// Availability is the seat projection returned alongside a session.
type Availability struct {
	Session        *model.Session `json:"session"`
	Unlimited      bool           `json:"unlimited"`
	SeatsAvailable int64          `json:"seats_available"`
}

type SessionService interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetAvailability(ctx context.Context, id string) (*Availability, error)
	GetAll(ctx context.Context, filter model.SessionFilter, limit int, offset int64) ([]*model.Session, int64, error)
	Update(ctx context.Context, id string, updates *model.SessionUpdate) error
	Delete(ctx context.Context, id string) error
	Resync(ctx context.Context, id string) (int64, error)
}

type sessionService struct {
	repo             repository.SessionRepository
	registrationRepo registrationsrepo.RegistrationRepository
	ledger           *ledger.Ledger
	validator        *validator.SessionValidator
	cfg              *config.Config
}

func NewSessionService(
	repo repository.SessionRepository,
	registrationRepo registrationsrepo.RegistrationRepository,
	seatLedger *ledger.Ledger,
	validator *validator.SessionValidator,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		repo:             repo,
		registrationRepo: registrationRepo,
		ledger:           seatLedger,
		validator:        validator,
		cfg:              cfg,
	}
}

func (s *sessionService) Create(ctx context.Context, session *model.Session) error {
	s.sanitize(session)
	s.applyDefaults(session)

	if err := s.validator.Validate(session); err != nil {
		s.cfg.Log.Warn("Session validation failed",
			"title", session.Title,
			"error", err,
		)
		return apperrors.Validation("Session validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	// seats_taken is derived, never accepted from the caller
	session.SeatsTaken = 0

	if err := s.repo.Create(ctx, session); err != nil {
		s.cfg.Log.Error("Failed to create session",
			"title", session.Title,
			"error", err,
		)
		return apperrors.Internal("Failed to create session", err)
	}

	s.cfg.Log.Info("Session created successfully",
		"id", session.ID,
		"title", session.Title,
		"type", session.Type,
		"total_seats", session.TotalSeats,
	)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sessionserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Session", id)
		}
		if errors.Is(err, sessionserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid session ID format")
		}
		s.cfg.Log.Error("Failed to get session by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve session", err)
	}

	return session, nil
}

func (s *sessionService) GetAvailability(ctx context.Context, id string) (*Availability, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	available, unlimited, err := s.ledger.SeatsAvailable(ctx, session)
	if err != nil {
		s.cfg.Log.Error("Failed to compute seat availability",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to compute seat availability", err)
	}

	return &Availability{
		Session:        session,
		Unlimited:      unlimited,
		SeatsAvailable: available,
	}, nil
}

func (s *sessionService) GetAll(ctx context.Context, filter model.SessionFilter, limit int, offset int64) ([]*model.Session, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	// Shared context so a timeout on either query cancels both
	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var sessions []*model.Session
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count sessions", "error", err)
			errCount = apperrors.Internal("Failed to count sessions", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		sessions, err = s.repo.FindAll(sharedCtx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get all sessions",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve sessions", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return sessions, count, nil
}

func (s *sessionService) Update(ctx context.Context, id string, updates *model.SessionUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Session ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.sanitizeUpdate(updates)
	merged := s.mergeSessionUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Session validation failed",
			"id", id,
			"title", merged.Title,
			"error", err,
		)
		return apperrors.Validation("Session validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	// Shrinking capacity below the committed count would break the seat
	// ledger; reject it before it reaches the database.
	if updates.TotalSeats != nil && *updates.TotalSeats > 0 {
		committed, err := s.ledger.Committed(ctx, id)
		if err != nil {
			return apperrors.Internal("Failed to count committed registrations", err)
		}
		if int64(*updates.TotalSeats) < committed {
			return apperrors.Conflict("Cannot reduce total seats below the committed registration count")
		}
	}

	if _, err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, sessionserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Session", id)
		}
		s.cfg.Log.Error("Failed to update session",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to update session", err)
	}

	s.cfg.Log.Info("Session updated successfully", "id", id, "title", merged.Title)
	return nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Session ID cannot be empty")
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		committed, err := s.registrationRepo.CountCommitted(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to count committed registrations", err)
		}
		if committed > 0 {
			return apperrors.Conflict("Cannot delete a session with confirmed or paid registrations")
		}

		deleted, err := s.registrationRepo.DeleteBySession(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete session registrations", err)
		}
		if deleted > 0 {
			s.cfg.Log.Info("Deleted session registrations",
				"session_id", id,
				"count", deleted,
			)
		}

		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, sessionserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Session", id)
			}
			if errors.Is(err, sessionserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid session ID format")
			}
			return apperrors.Internal("Failed to delete session", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Session deleted successfully", "id", id)
	return nil
}

func (s *sessionService) Resync(ctx context.Context, id string) (int64, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return 0, err
	}

	committed, err := s.ledger.Resync(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to resync session seat count",
			"id", id,
			"error", err,
		)
		return 0, apperrors.Internal("Failed to resync session seat count", err)
	}

	return committed, nil
}

func (s *sessionService) sanitize(session *model.Session) {
	session.Title = sanitizer.TrimAndNormalize(session.Title)
	session.Level = sanitizer.TrimAndNormalize(session.Level)
	session.Campus = sanitizer.NormalizeCity(session.Campus)
	session.Notes = sanitizer.TrimAndNormalize(session.Notes)
}

func (s *sessionService) sanitizeUpdate(updates *model.SessionUpdate) {
	if updates.Title != "" {
		updates.Title = sanitizer.TrimAndNormalize(updates.Title)
	}
	if updates.Level != nil {
		*updates.Level = sanitizer.TrimAndNormalize(*updates.Level)
	}
	if updates.Campus != nil {
		*updates.Campus = sanitizer.NormalizeCity(*updates.Campus)
	}
	if updates.Notes != nil {
		*updates.Notes = sanitizer.TrimAndNormalize(*updates.Notes)
	}
}

func (s *sessionService) applyDefaults(session *model.Session) {
	if session.Currency == "" {
		session.Currency = s.cfg.DefaultCurrency
	}
	if session.Status == "" {
		session.Status = model.SessionStatusDraft
	}
}

func (s *sessionService) mergeSessionUpdates(existing *model.Session, updates *model.SessionUpdate) *model.Session {
	merged := *existing

	if updates.Title != "" {
		merged.Title = updates.Title
	}
	if updates.Type != "" {
		merged.Type = updates.Type
	}
	if updates.Level != nil {
		merged.Level = *updates.Level
	}
	if updates.Campus != nil {
		merged.Campus = *updates.Campus
	}
	if updates.RegOpensAt != nil {
		merged.RegOpensAt = updates.RegOpensAt
	}
	if updates.RegEndsAt != nil {
		merged.RegEndsAt = updates.RegEndsAt
	}
	if updates.StartsAt != nil {
		merged.StartsAt = updates.StartsAt
	}
	if updates.EndsAt != nil {
		merged.EndsAt = updates.EndsAt
	}
	if updates.TotalSeats != nil {
		merged.TotalSeats = *updates.TotalSeats
	}
	if updates.Price != nil {
		merged.Price = *updates.Price
	}
	if updates.Currency != "" {
		merged.Currency = updates.Currency
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}
	if updates.Notes != nil {
		merged.Notes = *updates.Notes
	}

	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	return &merged
}
