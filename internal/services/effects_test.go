package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"canopy-backend-go/internal/notify"
)

type recordingMailer struct {
	sent []notify.Message
	fail bool
}

func (m *recordingMailer) Send(ctx context.Context, msg notify.Message) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingPublisher struct {
	published []notify.Activity
}

func (p *recordingPublisher) Publish(ctx context.Context, activity notify.Activity) error {
	p.published = append(p.published, activity)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestEffectRunnerPrefixesRelativeCTA(t *testing.T) {
	mailer := &recordingMailer{}
	runner := &EffectRunner{Mailer: mailer, BaseURL: "https://canopy.test/"}
	effects := appendEffects(nil,
		emailEffect("a@example.com", "Hi", "Hello", []string{"x"}, &notify.CTA{Label: "Open", URL: "/events/1"}),
		emailEffect("b@example.com", "Hi", "Hello", nil, &notify.CTA{Label: "Site", URL: "https://other.test/x"}),
	)
	runner.Run(context.Background(), effects)
	if len(mailer.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(mailer.sent))
	}
	if got := mailer.sent[0].CTA.URL; got != "https://canopy.test/events/1" {
		t.Fatalf("unexpected cta %q", got)
	}
	if got := mailer.sent[1].CTA.URL; got != "https://other.test/x" {
		t.Fatalf("absolute urls stay untouched, got %q", got)
	}
	original := effects[0].(SendEmail)
	if original.CTA.URL != "/events/1" {
		t.Fatal("runner must not mutate the effect")
	}
}

func TestEffectRunnerSwallowsFailures(t *testing.T) {
	mailer := &recordingMailer{fail: true}
	publisher := &recordingPublisher{}
	runner := &EffectRunner{Mailer: mailer, Publisher: publisher, Timeout: time.Second}
	runner.Run(context.Background(), []Effect{
		emailEffect("a@example.com", "Hi", "Hello", nil, nil),
		activityEffect("signup.created", "EVENT", "e1", "u1", time.Now(), nil),
	})
	if len(publisher.published) != 1 {
		t.Fatal("a failed email must not stop later effects")
	}
	if publisher.published[0].Type != "signup.created" || publisher.published[0].EntityID != "e1" {
		t.Fatalf("unexpected activity %+v", publisher.published[0])
	}
}

func TestEmailEffectWithoutRecipientIsDropped(t *testing.T) {
	if emailEffect("", "Hi", "Hello", nil, nil) != nil {
		t.Fatal("expected nil effect")
	}
	if got := appendEffects(nil, nil, emailEffect("", "a", "b", nil, nil)); len(got) != 0 {
		t.Fatalf("nil effects must be skipped, got %d", len(got))
	}
}

func TestNilRunnerIsSafe(t *testing.T) {
	var runner *EffectRunner
	runner.Run(context.Background(), []Effect{emailEffect("a@example.com", "s", "h", nil, nil)})
	runner.RunDetached(nil)
}
