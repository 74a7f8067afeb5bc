// Package ledger derives seat usage for a session from its registration
// rows. The registration collection is the source of truth; the
// seats_taken field on the session document is a cache this package
// keeps in step.
package ledger

import (
	"context"
	"time"

	registrationsrepo "regdesk/internal/registrations/repository"
	sessionsrepo "regdesk/internal/sessions/repository"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

type Ledger struct {
	registrationRepo registrationsrepo.RegistrationRepository
	sessionRepo      sessionsrepo.SessionRepository
	log              *logger.Logger
	now              func() time.Time
}

func New(registrationRepo registrationsrepo.RegistrationRepository, sessionRepo sessionsrepo.SessionRepository, log *logger.Logger) *Ledger {
	return &Ledger{
		registrationRepo: registrationRepo,
		sessionRepo:      sessionRepo,
		log:              log,
		now:              time.Now,
	}
}

// Committed counts registrations that permanently occupy a seat
// (confirmed or paid).
func (l *Ledger) Committed(ctx context.Context, sessionID string) (int64, error) {
	return l.registrationRepo.CountCommitted(ctx, sessionID)
}

// ActiveHolds counts pending registrations whose seat lock has not yet
// expired. Expired holds do not count against capacity even before the
// reaper cancels them.
func (l *Ledger) ActiveHolds(ctx context.Context, sessionID string) (int64, error) {
	return l.registrationRepo.CountActiveLocks(ctx, sessionID, l.now().UTC())
}

// SeatsAvailable reports how many seats remain on the session once
// committed rows and live holds are subtracted. unlimited is true when
// the session has no seat cap, in which case available is meaningless.
func (l *Ledger) SeatsAvailable(ctx context.Context, session *model.Session) (available int64, unlimited bool, err error) {
	if session.Unlimited() {
		return 0, true, nil
	}

	committed, err := l.Committed(ctx, session.ID)
	if err != nil {
		return 0, false, err
	}
	holds, err := l.ActiveHolds(ctx, session.ID)
	if err != nil {
		return 0, false, err
	}

	available = int64(session.TotalSeats) - committed - holds
	if available < 0 {
		available = 0
	}
	return available, false, nil
}

// Resync recomputes the committed count and writes it back to the
// session document. Returns the recomputed count.
func (l *Ledger) Resync(ctx context.Context, sessionID string) (int64, error) {
	committed, err := l.Committed(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	if err := l.sessionRepo.SetSeatsTaken(ctx, sessionID, committed); err != nil {
		return 0, err
	}

	l.log.Info("resynced session seat count",
		"session_id", sessionID,
		"seats_taken", committed)
	return committed, nil
}
