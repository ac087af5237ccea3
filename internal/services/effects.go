package services

import (
	"context"
	"log"
	"strings"
	"time"

	"canopy-backend-go/internal/notify"
)

// Effect is a side effect attempted after a transaction commits. Effects never
// change persisted state, and their failures never reach the caller.
type Effect interface {
	apply(ctx context.Context, r *EffectRunner) error
	describe() string
}

type SendEmail struct {
	notify.Message
}

func (e SendEmail) apply(ctx context.Context, r *EffectRunner) error {
	if r.Mailer == nil {
		return nil
	}
	msg := e.Message
	if msg.CTA != nil && strings.HasPrefix(msg.CTA.URL, "/") {
		cta := *msg.CTA
		cta.URL = strings.TrimRight(r.BaseURL, "/") + cta.URL
		msg.CTA = &cta
	}
	return r.Mailer.Send(ctx, msg)
}

func (e SendEmail) describe() string {
	return "email to " + e.To + " (" + e.Subject + ")"
}

type PublishActivity struct {
	notify.Activity
}

func (e PublishActivity) apply(ctx context.Context, r *EffectRunner) error {
	if r.Hub != nil {
		r.Hub.Broadcast(e.Activity)
	}
	if r.Publisher == nil {
		return nil
	}
	return r.Publisher.Publish(ctx, e.Activity)
}

func (e PublishActivity) describe() string {
	return "activity " + e.Type + " " + e.EntityID
}

// EffectRunner executes effects independently of each other.
type EffectRunner struct {
	Mailer    notify.Mailer
	Publisher notify.Publisher
	Hub       *ActivityHub
	Timeout   time.Duration
	// BaseURL prefixes CTA links given as app-relative paths.
	BaseURL string
}

// Run attempts every effect, logging and swallowing failures.
func (r *EffectRunner) Run(ctx context.Context, effects []Effect) {
	if r == nil {
		return
	}
	for _, effect := range effects {
		if effect == nil {
			continue
		}
		runCtx := ctx
		cancel := func() {}
		if r.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}
		if err := effect.apply(runCtx, r); err != nil {
			log.Printf("[effects] %s failed: %v", effect.describe(), err)
		}
		cancel()
	}
}

// RunDetached runs effects on a background goroutine so request latency does
// not include SMTP or broker round-trips.
func (r *EffectRunner) RunDetached(effects []Effect) {
	if r == nil || len(effects) == 0 {
		return
	}
	go r.Run(context.Background(), effects)
}

func emailEffect(to, subject, heading string, lines []string, cta *notify.CTA) Effect {
	if to == "" {
		return nil
	}
	return SendEmail{notify.Message{
		To:          to,
		Subject:     subject,
		Heading:     heading,
		BodyLines:   lines,
		CTA:         cta,
		PreviewText: subject,
	}}
}

func activityEffect(kind, entityType, entityID, actorID string, now time.Time, data map[string]interface{}) Effect {
	return PublishActivity{notify.Activity{
		Type:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		At:         now,
		Data:       data,
	}}
}

func appendEffects(effects []Effect, more ...Effect) []Effect {
	for _, effect := range more {
		if effect != nil {
			effects = append(effects, effect)
		}
	}
	return effects
}
