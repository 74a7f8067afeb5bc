package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type SessionValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSessionValidator(log *logger.Logger) *SessionValidator {
	return &SessionValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *SessionValidator) Validate(session *model.Session) error {
	if err := v.validate.Struct(session); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return v.checkWindows(session.RegOpensAt, session.RegEndsAt, session.StartsAt, session.EndsAt)
}

func (v *SessionValidator) ValidateUpdate(update *model.SessionUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return v.checkWindows(update.RegOpensAt, update.RegEndsAt, update.StartsAt, update.EndsAt)
}

// checkWindows enforces ordering between whichever bounds are present:
// registration opens before it ends, the session starts before it ends,
// and registration does not outlive the session start.
func (v *SessionValidator) checkWindows(regOpens, regEnds, starts, ends *time.Time) error {
	var errs ValidationErrors

	if regOpens != nil && regEnds != nil && !regEnds.After(*regOpens) {
		errs = append(errs, ValidationError{
			Field:   "RegEndsAt",
			Message: "registration_ends_at must be after registration_opens_at",
		})
	}
	if starts != nil && ends != nil && !ends.After(*starts) {
		errs = append(errs, ValidationError{
			Field:   "EndsAt",
			Message: "ends_at must be after starts_at",
		})
	}
	if regEnds != nil && starts != nil && regEnds.After(*starts) {
		errs = append(errs, ValidationError{
			Field:   "RegEndsAt",
			Message: "registration_ends_at must not be after starts_at",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *SessionValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
