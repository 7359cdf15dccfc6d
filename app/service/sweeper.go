package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/config"
)

type accountDeactivator interface {
	DeactivateInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type expiredCodePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper runs the two maintenance jobs: hourly purge of expired reset
// tokens and a daily deactivation of accounts idle beyond the inactivity
// window. Each job runs in its own goroutine off a ticker, so runs of the
// same kind never overlap; both stop when the start context is cancelled.
type Sweeper struct {
	users accountDeactivator
	reset expiredCodePurger
	cfg   *config.Config
	wg    sync.WaitGroup
}

func NewSweeper(users accountDeactivator, reset expiredCodePurger, cfg *config.Config) *Sweeper {
	return &Sweeper{
		users: users,
		reset: reset,
		cfg:   cfg,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, "reset_token_cleanup", s.cfg.Reset.CleanupInterval, func(ctx context.Context) {
		s.runCleanup(ctx)
	})
	go s.loop(ctx, "account_deactivation", s.cfg.Sweep.DeactivationInterval, func(ctx context.Context) {
		s.runDeactivation(ctx)
	})
}

// Wait blocks until both loops have observed cancellation.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"job":      name,
		"interval": interval.String(),
	}).Info("Sweep job started")

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("job", name).Info("Sweep job stopped")
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (s *Sweeper) runCleanup(ctx context.Context) {
	count, err := s.RunCleanupOnce(ctx)
	if err != nil {
		logrus.WithError(err).Error("Reset token cleanup failed")
		return
	}
	logrus.WithField("purged", count).Debug("Reset token cleanup completed")
}

func (s *Sweeper) runDeactivation(ctx context.Context) {
	count, err := s.RunDeactivationOnce(ctx)
	if err != nil {
		logrus.WithError(err).Error("Account deactivation sweep failed")
		return
	}
	logrus.WithField("deactivated", count).Info("Account deactivation sweep completed")
}

// RunCleanupOnce purges expired reset tokens immediately.
func (s *Sweeper) RunCleanupOnce(ctx context.Context) (int64, error) {
	return s.reset.PurgeExpired(ctx)
}

// RunDeactivationOnce deactivates accounts whose last activity predates the
// inactivity window. One-way: reactivation is a separate admin operation.
func (s *Sweeper) RunDeactivationOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.Sweep.InactivityWindow)
	return s.users.DeactivateInactiveBefore(ctx, cutoff)
}
