package validator

import (
	"errors"
	"testing"

	registrationserrors "regdesk/internal/registrations/errors"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

func newTestValidator() *RegistrationValidator {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewRegistrationValidator(log)
}

func validStudentFields() model.StudentFields {
	return model.StudentFields{
		FullName: "Amina El Fassi",
		Email:    "amina@example.com",
		Phone:    "+212612345678",
		CIN:      "AB123456",
	}
}

func TestValidateRequest(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		mutate    func(req *model.RegistrationRequest)
		wantError bool
	}{
		{
			name:      "valid request",
			mutate:    func(req *model.RegistrationRequest) {},
			wantError: false,
		},
		{
			name:      "missing session id",
			mutate:    func(req *model.RegistrationRequest) { req.SessionID = "" },
			wantError: true,
		},
		{
			name:      "missing full name",
			mutate:    func(req *model.RegistrationRequest) { req.Student.FullName = "" },
			wantError: true,
		},
		{
			name:      "missing email",
			mutate:    func(req *model.RegistrationRequest) { req.Student.Email = "" },
			wantError: true,
		},
		{
			name:      "missing phone",
			mutate:    func(req *model.RegistrationRequest) { req.Student.Phone = "" },
			wantError: true,
		},
		{
			name:      "missing cin",
			mutate:    func(req *model.RegistrationRequest) { req.Student.CIN = "" },
			wantError: true,
		},
		{
			name:      "malformed email",
			mutate:    func(req *model.RegistrationRequest) { req.Student.Email = "not-an-email" },
			wantError: true,
		},
		{
			name:      "phone not e164",
			mutate:    func(req *model.RegistrationRequest) { req.Student.Phone = "0612345678" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &model.RegistrationRequest{
				SessionID: "507f1f77bcf86cd799439011",
				Student:   validStudentFields(),
			}
			tt.mutate(req)
			err := v.ValidateRequest(req)
			if tt.wantError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidateRequest_ReportsEachMissingField(t *testing.T) {
	v := newTestValidator()

	err := v.ValidateRequest(&model.RegistrationRequest{
		SessionID: "507f1f77bcf86cd799439011",
		Student:   model.StudentFields{FullName: "Amina El Fassi"},
	})
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	missing := make(map[string]bool, len(errs))
	for _, e := range errs {
		missing[e.Field] = true
	}
	for _, field := range []string{"Email", "Phone", "CIN"} {
		if !missing[field] {
			t.Errorf("expected a validation error for %s, got %v", field, errs)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{model.RegistrationPending, model.RegistrationConfirmed, true},
		{model.RegistrationPending, model.RegistrationPaid, true},
		{model.RegistrationPending, model.RegistrationCanceled, true},
		{model.RegistrationConfirmed, model.RegistrationPaid, true},
		{model.RegistrationConfirmed, model.RegistrationCanceled, true},
		{model.RegistrationConfirmed, model.RegistrationPending, false},
		{model.RegistrationPaid, model.RegistrationConfirmed, true},
		{model.RegistrationPaid, model.RegistrationCanceled, true},
		{model.RegistrationPaid, model.RegistrationPending, false},
		{model.RegistrationCanceled, model.RegistrationPending, false},
		{model.RegistrationCanceled, model.RegistrationConfirmed, false},
		{model.RegistrationCanceled, model.RegistrationPaid, false},
		// same status is always a no-op
		{model.RegistrationCanceled, model.RegistrationCanceled, true},
		{model.RegistrationPaid, model.RegistrationPaid, true},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			err := v.ValidateTransition(tt.from, tt.to)
			if tt.allowed && err != nil {
				t.Errorf("expected transition %s -> %s allowed, got %v", tt.from, tt.to, err)
			}
			if !tt.allowed {
				if err == nil {
					t.Fatalf("expected transition %s -> %s rejected", tt.from, tt.to)
				}
				if !errors.Is(err, registrationserrors.ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	v := newTestValidator()

	amount := -5.0
	tests := []struct {
		name      string
		update    *model.RegistrationUpdate
		wantError bool
	}{
		{"empty update", &model.RegistrationUpdate{}, false},
		{"status only", &model.RegistrationUpdate{Status: model.RegistrationPaid}, false},
		{"unknown status", &model.RegistrationUpdate{Status: "refunded"}, true},
		{"negative amount", &model.RegistrationUpdate{Amount: &amount}, true},
		{"unknown payment method", &model.RegistrationUpdate{PaymentMethod: "crypto"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpdate(tt.update)
			if tt.wantError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
