package sched

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Stage is one pipeline stage body, run once per polling cycle.
type Stage interface {
	RunCycle(ctx context.Context) error
}

// Leaser releases expired claim leases. Every runner calls it before its
// stage body so crashed claimants are healed by whichever process polls next.
type Leaser interface {
	ReleaseStaleClaims(maxAge time.Duration) (int64, error)
}

// Runner drives one stage: release stale claims, run the cycle, sleep,
// repeat. Stage errors are logged and the loop continues; only context
// cancellation stops it.
type Runner struct {
	name     string
	stage    Stage
	leaser   Leaser
	lease    time.Duration
	interval func() time.Duration
}

func NewRunner(name string, stage Stage, leaser Leaser, lease time.Duration, interval func() time.Duration) *Runner {
	return &Runner{
		name:     name,
		stage:    stage,
		leaser:   leaser,
		lease:    lease,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	logger.Infof("%s runner started", r.name)

	for {
		released, err := r.leaser.ReleaseStaleClaims(r.lease)
		if err != nil {
			logger.Errorf("%s: stale claim release failed: %v", r.name, err)
		} else if released > 0 {
			logger.Warnf("%s: released %d stale claims", r.name, released)
		}

		if err := r.stage.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("%s: cycle failed: %v", r.name, err)
		}

		select {
		case <-ctx.Done():
			logger.Infof("%s runner stopped", r.name)
			return
		case <-time.After(r.interval()):
		}
	}
}
