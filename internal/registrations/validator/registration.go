package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	registrationserrors "regdesk/internal/registrations/errors"
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

// allowedTransitions maps a registration status to the statuses an
// operator may move it to. A canceled row only leaves that state by
// re-registering, which runs through the create path.
var allowedTransitions = map[string][]string{
	model.RegistrationPending:   {model.RegistrationConfirmed, model.RegistrationPaid, model.RegistrationCanceled},
	model.RegistrationConfirmed: {model.RegistrationPaid, model.RegistrationCanceled},
	model.RegistrationPaid:      {model.RegistrationConfirmed, model.RegistrationCanceled},
	model.RegistrationCanceled:  {},
}

type RegistrationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRegistrationValidator(log *logger.Logger) *RegistrationValidator {
	return &RegistrationValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// ValidateRequest checks the public registration form. The form
// collects the full student identity, so full_name, email, phone and
// cin are all mandatory here; admin-side student edits only need one
// reachable contact.
func (v *RegistrationValidator) ValidateRequest(req *model.RegistrationRequest) error {
	var errs ValidationErrors

	if req.SessionID == "" {
		errs = append(errs, ValidationError{Field: "SessionID", Message: "session_id is required"})
	}
	if req.Student.FullName == "" {
		errs = append(errs, ValidationError{Field: "FullName", Message: "full_name is required"})
	}
	if req.Student.Email == "" {
		errs = append(errs, ValidationError{Field: "Email", Message: "email is required"})
	} else if err := v.validate.Var(req.Student.Email, "email"); err != nil {
		errs = append(errs, ValidationError{Field: "Email", Message: "email must be a valid address"})
	}
	if req.Student.Phone == "" {
		errs = append(errs, ValidationError{Field: "Phone", Message: "phone is required"})
	} else if err := v.validate.Var(req.Student.Phone, "e164"); err != nil {
		errs = append(errs, ValidationError{Field: "Phone", Message: "phone must be in E.164 format (e.g., +212612345678)"})
	}
	if req.Student.CIN == "" {
		errs = append(errs, ValidationError{Field: "CIN", Message: "cin is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *RegistrationValidator) ValidateUpdate(update *model.RegistrationUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.Status != "" && !model.ValidRegistrationStatus(update.Status) {
		return ValidationErrors{
			ValidationError{
				Field:   "Status",
				Message: fmt.Sprintf("status must be one of: pending, confirmed, paid, canceled; got %q", update.Status),
			},
		}
	}

	return nil
}

// ValidateTransition enforces the status machine between an existing
// registration and the status an operator asked for.
func (v *RegistrationValidator) ValidateTransition(from, to string) error {
	if from == to {
		return nil
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", registrationserrors.ErrInvalidTransition, from, to)
}

func (v *RegistrationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
