package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"canopy-backend-go/internal/cache"
	"canopy-backend-go/internal/notify"
	"canopy-backend-go/internal/services"
)

type countingMailer struct {
	to []string
}

func (m *countingMailer) Send(ctx context.Context, msg notify.Message) error {
	m.to = append(m.to, msg.To)
	return nil
}

type fakeLock struct {
	held     bool
	released int
}

func (l *fakeLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	if l.held {
		return nil, cache.ErrLockHeld
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func TestRunOnceSendsClaimedReminders(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	mailer := &countingMailer{}
	var gotNow time.Time
	var gotWindow time.Duration
	lock := &fakeLock{}
	job := &ReminderJob{
		Claim: func(ctx context.Context, now time.Time, window time.Duration) ([]services.Reminder, error) {
			gotNow, gotWindow = now, window
			return []services.Reminder{
				{EventID: "e1", Email: "a@example.com", Name: "A", EventTitle: "Cleanup", StartsAt: fixed.Add(time.Hour), IsOnline: true},
				{EventID: "e1", Email: "b@example.com", Name: "B", EventTitle: "Cleanup", StartsAt: fixed.Add(time.Hour), IsOnline: true},
			}, nil
		},
		Effects: &services.EffectRunner{Mailer: mailer},
		Window:  24 * time.Hour,
		Lock:    lock,
		Now:     func() time.Time { return fixed },
	}
	n, err := job.RunOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 claimed, got %d err=%v", n, err)
	}
	if !gotNow.Equal(fixed) || gotWindow != 24*time.Hour {
		t.Fatalf("claim called with %v %v", gotNow, gotWindow)
	}
	if len(mailer.to) != 2 || mailer.to[0] != "a@example.com" {
		t.Fatalf("unexpected recipients %v", mailer.to)
	}
	if lock.released != 1 {
		t.Fatal("lock should be released after the run")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	called := false
	job := &ReminderJob{
		Claim: func(ctx context.Context, now time.Time, window time.Duration) ([]services.Reminder, error) {
			called = true
			return nil, nil
		},
		Lock:   &fakeLock{held: true},
		Window: time.Hour,
	}
	n, err := job.RunOnce(context.Background())
	if err != nil || n != 0 || called {
		t.Fatalf("held lock should skip the run: n=%d err=%v called=%v", n, err, called)
	}
}

func TestRunOnceReturnsClaimError(t *testing.T) {
	job := &ReminderJob{
		Claim: func(ctx context.Context, now time.Time, window time.Duration) ([]services.Reminder, error) {
			return nil, errors.New("db down")
		},
		Window: time.Hour,
	}
	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Fatal("expected claim error")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	job := &ReminderJob{Window: time.Hour}
	if err := job.Start("not a schedule"); err == nil {
		t.Fatal("expected parse error")
	}
	job.Stop(context.Background())
}

func TestStartAndStop(t *testing.T) {
	job := &ReminderJob{
		Claim: func(ctx context.Context, now time.Time, window time.Duration) ([]services.Reminder, error) {
			return nil, nil
		},
		Window: time.Hour,
	}
	if err := job.Start("@every 1h"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job.Stop(ctx)
}
