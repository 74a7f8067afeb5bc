package validator

import (
	"errors"
	"fmt"
	"strings"

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

type StudentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewStudentValidator(log *logger.Logger) *StudentValidator {
	return &StudentValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *StudentValidator) Validate(student *model.Student) error {
	if err := v.validate.Struct(student); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if student.Email == "" && student.Phone == "" {
		return ValidationErrors{
			ValidationError{
				Field:   "Email",
				Message: "at least one of email or phone is required",
			},
		}
	}

	return nil
}

func (v *StudentValidator) ValidateMerge(req *model.MergeRequest) error {
	var errs ValidationErrors

	if req.PrimaryID == "" {
		errs = append(errs, ValidationError{Field: "PrimaryID", Message: "primary_id is required"})
	}
	if len(req.DuplicateIDs) == 0 {
		errs = append(errs, ValidationError{Field: "DuplicateIDs", Message: "duplicate_ids must not be empty"})
	}
	for _, id := range req.DuplicateIDs {
		if id == req.PrimaryID {
			errs = append(errs, ValidationError{Field: "DuplicateIDs", Message: "duplicate_ids must not contain primary_id"})
			break
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *StudentValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +212612345678)", err.Field())
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
