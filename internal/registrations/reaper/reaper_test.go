package reaper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"regdesk/pkg/logger"
)

type countingPurger struct {
	sweeps int64
	err    error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int, error) {
	atomic.AddInt64(&p.sweeps, 1)
	if p.err != nil {
		return 0, p.err
	}
	return 1, nil
}

func (p *countingPurger) count() int64 {
	return atomic.LoadInt64(&p.sweeps)
}

func testLog() *logger.Logger {
	return logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
}

func TestReaper_SweepsImmediatelyOnStart(t *testing.T) {
	purger := &countingPurger{}
	r := New(purger, time.Hour, time.Second, testLog())

	r.Start()
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for purger.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an immediate sweep after Start")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestReaper_SweepsOnInterval(t *testing.T) {
	purger := &countingPurger{}
	r := New(purger, 20*time.Millisecond, time.Second, testLog())

	r.Start()
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for purger.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 sweeps, got %d", purger.count())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestReaper_KeepsSweepingAfterFailure(t *testing.T) {
	purger := &countingPurger{err: errors.New("mongo down")}
	r := New(purger, 20*time.Millisecond, time.Second, testLog())

	r.Start()
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for purger.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected the loop to survive sweep errors, got %d sweeps", purger.count())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestReaper_StopIsIdempotent(t *testing.T) {
	purger := &countingPurger{}
	r := New(purger, time.Hour, time.Second, testLog())

	r.Start()
	r.Stop()
	r.Stop()

	settled := purger.count()
	time.Sleep(50 * time.Millisecond)
	if purger.count() != settled {
		t.Error("expected no sweeps after Stop")
	}
}
