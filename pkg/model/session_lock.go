package model

import "time"

// SessionLock is an advisory mutex serializing the capacity check and
// registration insert for one session. The unique _id insert is the
// lock acquisition; ExpiresAt bounds the hold if a release is lost.
type SessionLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
