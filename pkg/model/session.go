package model

import "time"

const (
	SessionTypePrep   = "prep"
	SessionTypeExam   = "exam"
	SessionTypeBundle = "bundle"

	SessionStatusDraft     = "draft"
	SessionStatusPublished = "published"
	SessionStatusClosed    = "closed"
)

// Session is an enrollment session with finite seating. TotalSeats of 0
// means unlimited. SeatsTaken is a cache derived from committed
// registrations; only the capacity ledger may write it.
type Session struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Title      string     `json:"title" bson:"title" validate:"required,min=2,max=150"`
	Type       string     `json:"type" bson:"type" validate:"required,oneof=prep exam bundle"`
	Level      string     `json:"level" bson:"level" validate:"omitempty,max=50"`
	Campus     string     `json:"campus" bson:"campus" validate:"omitempty,max=100"`
	RegOpensAt *time.Time `json:"registration_opens_at,omitempty" bson:"registration_opens_at,omitempty"`
	RegEndsAt  *time.Time `json:"registration_ends_at,omitempty" bson:"registration_ends_at,omitempty"`
	StartsAt   *time.Time `json:"starts_at,omitempty" bson:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty" bson:"ends_at,omitempty"`
	TotalSeats int        `json:"total_seats" bson:"total_seats" validate:"min=0,max=100000"`
	SeatsTaken int        `json:"seats_taken" bson:"seats_taken" validate:"min=0"`
	Price      float64    `json:"price" bson:"price" validate:"min=0"`
	Currency   string     `json:"currency" bson:"currency" validate:"required,len=3"`
	Status     string     `json:"status" bson:"status" validate:"required,oneof=draft published closed"`
	Notes      string     `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type SessionUpdate struct {
	Title      string     `json:"title,omitempty" validate:"omitempty,min=2,max=150"`
	Type       string     `json:"type,omitempty" validate:"omitempty,oneof=prep exam bundle"`
	Level      *string    `json:"level,omitempty" validate:"omitempty,max=50"`
	Campus     *string    `json:"campus,omitempty" validate:"omitempty,max=100"`
	RegOpensAt *time.Time `json:"registration_opens_at,omitempty"`
	RegEndsAt  *time.Time `json:"registration_ends_at,omitempty"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	TotalSeats *int       `json:"total_seats,omitempty" validate:"omitempty,min=0,max=100000"`
	Price      *float64   `json:"price,omitempty" validate:"omitempty,min=0"`
	Currency   string     `json:"currency,omitempty" validate:"omitempty,len=3"`
	Status     string     `json:"status,omitempty" validate:"omitempty,oneof=draft published closed"`
	Notes      *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	Status string
	Type   string
	Campus string
	Level  string
}

// Unlimited reports whether the session has no seat cap.
func (s *Session) Unlimited() bool {
	return s.TotalSeats == 0
}

// RegistrationOpen reports whether now falls inside the registration
// window. A missing bound is treated as open on that side.
func (s *Session) RegistrationOpen(now time.Time) bool {
	if s.RegOpensAt != nil && now.Before(*s.RegOpensAt) {
		return false
	}
	if s.RegEndsAt != nil && now.After(*s.RegEndsAt) {
		return false
	}
	return true
}
