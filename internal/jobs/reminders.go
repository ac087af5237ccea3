package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"canopy-backend-go/internal/cache"
	"canopy-backend-go/internal/services"

	"github.com/robfig/cron/v3"
)

// Locker serializes a job across instances. Claiming is already atomic in the
// database, so the lock only keeps instances from racing for the same batch.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

// ClaimFunc marks due reminders as sent and returns them.
type ClaimFunc func(ctx context.Context, now time.Time, window time.Duration) ([]services.Reminder, error)

type ReminderJob struct {
	Claim   ClaimFunc
	Effects *services.EffectRunner
	Window  time.Duration
	Lock    Locker
	Now     func() time.Time

	cron *cron.Cron
}

// Start schedules the job. A run still in progress when the next tick fires
// causes that tick to be skipped.
func (j *ReminderJob) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			log.Printf("[reminders] run failed: %v", err)
		}
	}); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	log.Printf("[reminders] started schedule=%q window=%s", schedule, j.Window)
	return nil
}

// Stop prevents new runs and waits for a running one, or until ctx is done.
func (j *ReminderJob) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce claims due reminders and sends them. Returns how many were claimed.
func (j *ReminderJob) RunOnce(ctx context.Context) (int, error) {
	if j.Lock != nil {
		release, err := j.Lock.Acquire(ctx, "jobs:reminders", 5*time.Minute)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				return 0, nil
			}
			return 0, err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				log.Printf("[reminders] release lock: %v", err)
			}
		}()
	}
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now()
	}
	reminders, err := j.Claim(ctx, now, j.Window)
	if err != nil {
		return 0, err
	}
	if len(reminders) == 0 {
		return 0, nil
	}
	j.Effects.Run(ctx, services.ReminderEffects(reminders))
	log.Printf("[reminders] sent %d reminders", len(reminders))
	return len(reminders), nil
}
