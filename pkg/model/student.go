package model

import "time"

// Student identity is resolved by email OR phone; on a contact match the
// existing record is updated, never duplicated.
type Student struct {
	ID        string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	FullName  string     `json:"full_name" bson:"full_name" validate:"required,min=2,max=150"`
	Email     string     `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Phone     string     `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	CIN       string     `json:"cin,omitempty" bson:"cin,omitempty" validate:"omitempty,min=3,max=20"`
	Birthdate *time.Time `json:"birthdate,omitempty" bson:"birthdate,omitempty"`
	City      string     `json:"city,omitempty" bson:"city,omitempty" validate:"omitempty,max=100"`
	Notes     string     `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// StudentFields is the public registration form payload used to resolve
// or create a student.
type StudentFields struct {
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	CIN       string     `json:"cin"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	City      string     `json:"city,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type MergeRequest struct {
	PrimaryID    string   `json:"primary_id"`
	DuplicateIDs []string `json:"duplicate_ids"`
}
