// Package seatlock manages the temporary seat holds that pending
// registrations place on a session, and the per-session advisory lock
// that serializes concurrent seat checks.
package seatlock

import (
	"context"
	"fmt"
	"time"

	registrationserrors "regdesk/internal/registrations/errors"
	"regdesk/internal/registrations/ledger"
	registrationsrepo "regdesk/internal/registrations/repository"
	"regdesk/pkg/config"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

// purgeBatchSize bounds how many expired holds one purge pass touches.
const purgeBatchSize = 500

type Manager struct {
	cfg              *config.Config
	lockRepo         registrationsrepo.SessionLockRepository
	registrationRepo registrationsrepo.RegistrationRepository
	ledger           *ledger.Ledger
	log              *logger.Logger
	now              func() time.Time
}

func NewManager(cfg *config.Config, lockRepo registrationsrepo.SessionLockRepository, registrationRepo registrationsrepo.RegistrationRepository, seatLedger *ledger.Ledger, log *logger.Logger) *Manager {
	return &Manager{
		cfg:              cfg,
		lockRepo:         lockRepo,
		registrationRepo: registrationRepo,
		ledger:           seatLedger,
		log:              log,
		now:              time.Now,
	}
}

// WithSessionLock runs fn while holding the advisory lock for the
// session, so only one request at a time can run a check-then-insert
// against its capacity. A held lock maps to ErrSessionLocked; callers
// surface that as a retryable conflict.
func (m *Manager) WithSessionLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	if err := m.lockRepo.Acquire(ctx, sessionID, m.cfg.SessionLockTTL); err != nil {
		return err
	}
	defer func() {
		// Release on a fresh context so fn's cancellation cannot
		// strand the lock until its TTL.
		releaseCtx, cancel := context.WithTimeout(context.Background(), m.cfg.WriteTimeout)
		defer cancel()
		if err := m.lockRepo.Release(releaseCtx, sessionID); err != nil {
			m.log.Error("failed to release session lock", "session_id", sessionID, "error", err)
		}
	}()

	return fn(ctx)
}

// HoldSeat verifies the session still has room and returns the expiry
// for a new pending hold. Must be called inside WithSessionLock.
func (m *Manager) HoldSeat(ctx context.Context, session *model.Session) (*time.Time, error) {
	available, unlimited, err := m.ledger.SeatsAvailable(ctx, session)
	if err != nil {
		return nil, err
	}
	if !unlimited && available <= 0 {
		return nil, fmt.Errorf("%w: session %s", registrationserrors.ErrNoSeats, session.ID)
	}

	until := m.now().UTC().Add(m.cfg.SeatLockDuration).Truncate(time.Millisecond)
	return &until, nil
}

// IsExpired reports whether a pending registration's hold has lapsed. A
// pending row without a lock is treated as expired; only the pending
// status carries a hold at all.
func (m *Manager) IsExpired(registration *model.Registration) bool {
	if registration.Status != model.RegistrationPending {
		return false
	}
	if registration.SeatLockUntil == nil {
		return true
	}
	// A hold is live through its expiry instant; it lapses strictly after.
	return registration.SeatLockUntil.Before(m.now().UTC())
}

// PurgeExpired cancels pending registrations whose hold has lapsed and
// resyncs the seat count of every session it touched. Safe to run
// concurrently: each cancel re-checks status and expiry, so a second
// purger or an operator confirming the row simply wins.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	now := m.now().UTC()
	expired, err := m.registrationRepo.FindExpiredPending(ctx, now, purgeBatchSize)
	if err != nil {
		return 0, err
	}

	purged := 0
	touched := make(map[string]struct{})
	for _, registration := range expired {
		ok, err := m.registrationRepo.CancelExpired(ctx, registration.ID, now)
		if err != nil {
			// One bad row must not strand the rest of the batch.
			m.log.Error("failed to cancel expired seat hold",
				"registration_id", registration.ID,
				"session_id", registration.SessionID,
				"error", err)
			continue
		}
		if !ok {
			continue
		}
		purged++
		touched[registration.SessionID] = struct{}{}
		m.log.Info("purged expired seat hold",
			"registration_id", registration.ID,
			"session_id", registration.SessionID,
			"student_id", registration.StudentID)
	}

	for sessionID := range touched {
		if _, err := m.ledger.Resync(ctx, sessionID); err != nil {
			m.log.Error("failed to resync session after purge", "session_id", sessionID, "error", err)
		}
	}

	return purged, nil
}
