package model

import "time"

const (
	RegistrationPending   = "pending"
	RegistrationConfirmed = "confirmed"
	RegistrationPaid      = "paid"
	RegistrationCanceled  = "canceled"
)

// Registration links a student to a session. At most one row exists per
// (session_id, student_id) pair; a canceled row is revived in place on
// re-registration. SeatLockUntil is set only while status is pending.
type Registration struct {
	ID            string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SessionID     string     `json:"session_id" bson:"session_id" validate:"required,mongodb"`
	StudentID     string     `json:"student_id" bson:"student_id" validate:"required,mongodb"`
	Status        string     `json:"status" bson:"status" validate:"required,oneof=pending confirmed paid canceled"`
	Amount        float64    `json:"amount" bson:"amount" validate:"min=0"`
	Currency      string     `json:"currency" bson:"currency" validate:"required,len=3"`
	PaymentMethod string     `json:"payment_method,omitempty" bson:"payment_method,omitempty" validate:"omitempty,oneof=cash transfer card cheque other"`
	PaymentRef    string     `json:"payment_ref,omitempty" bson:"payment_ref,omitempty" validate:"omitempty,max=100"`
	SeatLockUntil *time.Time `json:"seat_lock_until,omitempty" bson:"seat_lock_until,omitempty"`
	Notes         string     `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt     time.Time  `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// Committed reports whether the registration permanently occupies a
// seat.
func (r *Registration) Committed() bool {
	return r.Status == RegistrationConfirmed || r.Status == RegistrationPaid
}

// RegistrationUpdate carries admin-editable fields. Identity fields
// (session, student) are owned by their repositories and never move
// through here.
type RegistrationUpdate struct {
	Status        string   `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed paid canceled"`
	Amount        *float64 `json:"amount,omitempty" validate:"omitempty,min=0"`
	PaymentMethod string   `json:"payment_method,omitempty" validate:"omitempty,oneof=cash transfer card cheque other"`
	PaymentRef    string   `json:"payment_ref,omitempty" validate:"omitempty,max=100"`
	Notes         *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// RegistrationRequest is the public create payload.
type RegistrationRequest struct {
	SessionID string        `json:"session_id"`
	Student   StudentFields `json:"student"`
}

// RegistrationFilter narrows registration listings. Search matches
// full_name, email and phone case-insensitively; the service resolves it
// to StudentIDs before the repository sees it.
type RegistrationFilter struct {
	SessionID  string
	Status     string
	Search     string
	StudentIDs []string
}

// RegistrationView is the read projection joining the owning session and
// student for display.
type RegistrationView struct {
	Registration *Registration `json:"registration"`
	Student      *Student      `json:"student,omitempty"`
	Session      *Session      `json:"session,omitempty"`
}

// ValidRegistrationStatus reports whether s names a known status.
func ValidRegistrationStatus(s string) bool {
	switch s {
	case RegistrationPending, RegistrationConfirmed, RegistrationPaid, RegistrationCanceled:
		return true
	}
	return false
}
