package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pinceletas/user-auth-service/app/service"
	"github.com/pinceletas/user-auth-service/config"
)

type fakeDeactivator struct {
	cutoff atomic.Value
	count  int64
	calls  atomic.Int64
	err    error
}

func (f *fakeDeactivator) DeactivateInactiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff.Store(cutoff)
	f.calls.Add(1)
	return f.count, f.err
}

type fakePurger struct {
	count int64
	calls atomic.Int64
	err   error
}

func (f *fakePurger) PurgeExpired(_ context.Context) (int64, error) {
	f.calls.Add(1)
	return f.count, f.err
}

func sweepTestConfig(cleanup, deactivation, window time.Duration) *config.Config {
	return &config.Config{
		Reset: config.ResetConfig{
			CodeTTL:         15 * time.Minute,
			CleanupInterval: cleanup,
		},
		Sweep: config.SweepConfig{
			DeactivationInterval: deactivation,
			InactivityWindow:     window,
		},
	}
}

func TestSweeper_RunDeactivationOnce_CutoffFromWindow(t *testing.T) {
	users := &fakeDeactivator{count: 3}
	purger := &fakePurger{}
	sweeper := service.NewSweeper(users, purger, sweepTestConfig(time.Hour, 24*time.Hour, 14*24*time.Hour))

	before := time.Now().Add(-14 * 24 * time.Hour)
	count, err := sweeper.RunDeactivationOnce(context.Background())
	after := time.Now().Add(-14 * 24 * time.Hour)

	if err != nil {
		t.Fatalf("deactivation failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 deactivated, got %d", count)
	}

	cutoff := users.cutoff.Load().(time.Time)
	if cutoff.Before(before) || cutoff.After(after) {
		t.Fatalf("cutoff %v not within [%v, %v]", cutoff, before, after)
	}
}

func TestSweeper_RunCleanupOnce(t *testing.T) {
	users := &fakeDeactivator{}
	purger := &fakePurger{count: 7}
	sweeper := service.NewSweeper(users, purger, sweepTestConfig(time.Hour, 24*time.Hour, 14*24*time.Hour))

	count, err := sweeper.RunCleanupOnce(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7 purged, got %d", count)
	}
}

func TestSweeper_RunCleanupOnce_Error(t *testing.T) {
	wantErr := errors.New("db gone")
	sweeper := service.NewSweeper(&fakeDeactivator{}, &fakePurger{err: wantErr}, sweepTestConfig(time.Hour, 24*time.Hour, 14*24*time.Hour))

	if _, err := sweeper.RunCleanupOnce(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestSweeper_StartAndStop(t *testing.T) {
	users := &fakeDeactivator{}
	purger := &fakePurger{}
	sweeper := service.NewSweeper(users, purger, sweepTestConfig(10*time.Millisecond, 10*time.Millisecond, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)

	time.Sleep(60 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}

	if purger.calls.Load() == 0 {
		t.Error("expected cleanup job to have run")
	}
	if users.calls.Load() == 0 {
		t.Error("expected deactivation job to have run")
	}
}
