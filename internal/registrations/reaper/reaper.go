// Package reaper runs the periodic sweep that cancels pending
// registrations whose seat hold has expired.
package reaper

import (
	"context"
	"sync"
	"time"

	"regdesk/pkg/logger"
)

// Purger is implemented by the seat lock manager.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type Reaper struct {
	purger   Purger
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func New(purger Purger, interval, timeout time.Duration, log *logger.Logger) *Reaper {
	return &Reaper{
		purger:   purger,
		interval: interval,
		timeout:  timeout,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs immediately so a
// restart does not wait a full interval to clear stale holds.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.log.Info("Seat hold reaper started", "interval", r.interval)
		r.sweep()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stop:
				r.log.Info("Seat hold reaper stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish. Safe
// to call more than once.
func (r *Reaper) Stop() {
	r.once.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	purged, err := r.purger.PurgeExpired(ctx)
	if err != nil {
		r.log.Error("Seat hold sweep failed", "error", err)
		return
	}
	if purged > 0 {
		r.log.Info("Seat hold sweep completed", "purged", purged)
	}
}
