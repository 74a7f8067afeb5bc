package service

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	registrationserrors "regdesk/internal/registrations/errors"
	registrationsrepo "regdesk/internal/registrations/repository"
	studentserrors "regdesk/internal/students/errors"
	"regdesk/internal/students/repository"
	"regdesk/internal/students/validator"
	"regdesk/pkg/config"
	apperrors "regdesk/pkg/errors"
	"regdesk/pkg/model"
	"regdesk/pkg/sanitizer"
)

type StudentService interface {
	// Resolve finds the student matching the form's email or phone, or
	// creates one. On a match the provided fields overwrite the stored
	// ones; blank form fields leave the stored values alone.
	Resolve(ctx context.Context, fields *model.StudentFields) (*model.Student, error)
	GetByID(ctx context.Context, id string) (*model.Student, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.Student, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Student, int64, error)
	Update(ctx context.Context, id string, student *model.Student) error
	// Merge folds duplicate student records into a primary: their
	// registrations move to the primary, then the duplicates are
	// deleted. Returns how many registrations moved.
	Merge(ctx context.Context, req *model.MergeRequest) (int64, error)
	SearchIDs(ctx context.Context, term string, limit int) ([]string, error)
}

type studentService struct {
	repo             repository.StudentRepository
	registrationRepo registrationsrepo.RegistrationRepository
	validator        *validator.StudentValidator
	cfg              *config.Config
}

func NewStudentService(
	repo repository.StudentRepository,
	registrationRepo registrationsrepo.RegistrationRepository,
	validator *validator.StudentValidator,
	cfg *config.Config,
) StudentService {
	return &studentService{
		repo:             repo,
		registrationRepo: registrationRepo,
		validator:        validator,
		cfg:              cfg,
	}
}

func (s *studentService) Resolve(ctx context.Context, fields *model.StudentFields) (*model.Student, error) {
	candidate := s.fromFields(fields)

	if err := s.validator.Validate(candidate); err != nil {
		s.cfg.Log.Warn("Student validation failed",
			"full_name", candidate.FullName,
			"error", err,
		)
		return nil, apperrors.Validation("Student validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	existing, err := s.repo.FindByContact(ctx, candidate.Email, candidate.Phone)
	if err != nil {
		if !errors.Is(err, studentserrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to resolve student by contact",
				"email", candidate.Email,
				"error", err,
			)
			return nil, apperrors.Internal("Failed to resolve student", err)
		}

		if err := s.repo.Create(ctx, candidate); err != nil {
			if errors.Is(err, studentserrors.ErrDuplicateContact) {
				// Lost a race with a concurrent create for the same
				// contact; pick up the winner's record.
				if winner, ferr := s.repo.FindByContact(ctx, candidate.Email, candidate.Phone); ferr == nil {
					return winner, nil
				}
				return nil, apperrors.Conflict("Student with the same contact already exists")
			}
			s.cfg.Log.Error("Failed to create student",
				"full_name", candidate.FullName,
				"error", err,
			)
			return nil, apperrors.Internal("Failed to create student", err)
		}

		s.cfg.Log.Info("Student created",
			"id", candidate.ID,
			"full_name", candidate.FullName,
		)
		return candidate, nil
	}

	merged := s.mergeFields(existing, candidate)
	if _, err := s.repo.Update(ctx, existing.ID, merged); err != nil {
		if errors.Is(err, studentserrors.ErrDuplicateContact) {
			return nil, apperrors.Conflict("Another student already uses this contact")
		}
		s.cfg.Log.Error("Failed to refresh student record",
			"id", existing.ID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update student", err)
	}

	merged.ID = existing.ID
	return merged, nil
}

func (s *studentService) GetByID(ctx context.Context, id string) (*model.Student, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Student ID cannot be empty")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, studentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Student", id)
		}
		if errors.Is(err, studentserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid student ID format")
		}
		s.cfg.Log.Error("Failed to get student by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve student", err)
	}

	return student, nil
}

func (s *studentService) GetByIDs(ctx context.Context, ids []string) ([]*model.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	students, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		if errors.Is(err, studentserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid student ID format")
		}
		s.cfg.Log.Error("Failed to get students by IDs", "error", err)
		return nil, apperrors.Internal("Failed to retrieve students", err)
	}

	return students, nil
}

func (s *studentService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Student, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var students []*model.Student
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx)
		if err != nil {
			s.cfg.Log.Error("Failed to count students", "error", err)
			errCount = apperrors.Internal("Failed to count students", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		students, err = s.repo.FindAll(sharedCtx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get all students",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve students", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return students, count, nil
}

func (s *studentService) Update(ctx context.Context, id string, student *model.Student) error {
	if id == "" {
		return apperrors.InvalidInput("Student ID cannot be empty")
	}

	s.sanitize(student)
	if err := s.validator.Validate(student); err != nil {
		s.cfg.Log.Warn("Student validation failed",
			"id", id,
			"error", err,
		)
		return apperrors.Validation("Student validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if _, err := s.repo.Update(ctx, id, student); err != nil {
		if errors.Is(err, studentserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Student", id)
		}
		if errors.Is(err, studentserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid student ID format")
		}
		if errors.Is(err, studentserrors.ErrDuplicateContact) {
			return apperrors.Conflict("Another student already uses this contact")
		}
		s.cfg.Log.Error("Failed to update student",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to update student", err)
	}

	s.cfg.Log.Info("Student updated successfully", "id", id)
	return nil
}

func (s *studentService) Merge(ctx context.Context, req *model.MergeRequest) (int64, error) {
	if err := s.validator.ValidateMerge(req); err != nil {
		return 0, apperrors.Validation("Merge request validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	var moved int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.repo.FindByID(sessCtx, req.PrimaryID); err != nil {
			if errors.Is(err, studentserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Student", req.PrimaryID)
			}
			if errors.Is(err, studentserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid student ID format")
			}
			return apperrors.Internal("Failed to verify primary student", err)
		}

		var err error
		moved, err = s.registrationRepo.ReassignStudent(sessCtx, req.DuplicateIDs, req.PrimaryID)
		if err != nil {
			if errors.Is(err, registrationserrors.ErrAlreadyRegistered) {
				return apperrors.Conflict("Primary student is already registered on a session held by a duplicate")
			}
			return apperrors.Internal("Failed to reassign registrations", err)
		}

		if _, err := s.repo.DeleteMany(sessCtx, req.DuplicateIDs); err != nil {
			if errors.Is(err, studentserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid student ID format")
			}
			return apperrors.Internal("Failed to delete duplicate students", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cfg.Log.Info("Merged duplicate students",
		"primary_id", req.PrimaryID,
		"duplicates", len(req.DuplicateIDs),
		"registrations_moved", moved,
	)
	return moved, nil
}

func (s *studentService) SearchIDs(ctx context.Context, term string, limit int) ([]string, error) {
	term = sanitizer.TrimAndNormalize(term)
	if term == "" {
		return nil, nil
	}
	// Callers qualify the limit themselves; this is identity resolution,
	// not pagination, so the page-size cap does not apply.
	if limit <= 0 {
		limit = config.DefaultPaginationLimit
	}

	ids, err := s.repo.SearchIDs(ctx, term, limit)
	if err != nil {
		s.cfg.Log.Error("Failed to search students",
			"term", term,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to search students", err)
	}

	return ids, nil
}

func (s *studentService) fromFields(fields *model.StudentFields) *model.Student {
	student := &model.Student{
		FullName:  sanitizer.NormalizeName(fields.FullName),
		Email:     sanitizer.NormalizeEmail(fields.Email),
		Phone:     sanitizer.NormalizePhone(fields.Phone),
		CIN:       sanitizer.NormalizeCIN(fields.CIN),
		Birthdate: fields.Birthdate,
		City:      sanitizer.NormalizeCity(fields.City),
		Notes:     sanitizer.TrimAndNormalize(fields.Notes),
	}
	return student
}

func (s *studentService) sanitize(student *model.Student) {
	student.FullName = sanitizer.NormalizeName(student.FullName)
	student.Email = sanitizer.NormalizeEmail(student.Email)
	student.Phone = sanitizer.NormalizePhone(student.Phone)
	student.CIN = sanitizer.NormalizeCIN(student.CIN)
	student.City = sanitizer.NormalizeCity(student.City)
	student.Notes = sanitizer.TrimAndNormalize(student.Notes)
}

// mergeFields overlays the form's non-empty fields on the stored record.
func (s *studentService) mergeFields(existing, incoming *model.Student) *model.Student {
	merged := *existing

	if incoming.FullName != "" {
		merged.FullName = incoming.FullName
	}
	if incoming.Email != "" {
		merged.Email = incoming.Email
	}
	if incoming.Phone != "" {
		merged.Phone = incoming.Phone
	}
	if incoming.CIN != "" {
		merged.CIN = incoming.CIN
	}
	if incoming.Birthdate != nil {
		merged.Birthdate = incoming.Birthdate
	}
	if incoming.City != "" {
		merged.City = incoming.City
	}
	if incoming.Notes != "" {
		merged.Notes = incoming.Notes
	}

	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	return &merged
}
