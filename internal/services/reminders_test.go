package services

import (
	"strings"
	"testing"
	"time"
)

func TestReminderEffects(t *testing.T) {
	park := "Riverside Park"
	starts := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	effects := ReminderEffects([]Reminder{
		{EventID: "e1", Email: "a@example.com", Name: "Ana", EventTitle: "Tree planting", StartsAt: starts, Location: &park},
		{EventID: "e2", Email: "", Name: "Nobody", EventTitle: "Ghost", StartsAt: starts},
		{EventID: "e3", Email: "b@example.com", Name: "Ben", EventTitle: "Webinar", StartsAt: starts, IsOnline: true},
	})
	if len(effects) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(effects))
	}
	first := effects[0].(SendEmail)
	if first.To != "a@example.com" || !strings.Contains(first.Subject, "Tree planting") {
		t.Fatalf("unexpected email %+v", first.Message)
	}
	if first.CTA == nil || first.CTA.URL != "/events/e1" {
		t.Fatalf("unexpected cta %+v", first.CTA)
	}
	if !strings.Contains(strings.Join(first.BodyLines, "\n"), "Where: Riverside Park") {
		t.Fatalf("location missing: %v", first.BodyLines)
	}
	second := effects[1].(SendEmail)
	if !strings.Contains(strings.Join(second.BodyLines, "\n"), "Where: online") {
		t.Fatalf("online events say so: %v", second.BodyLines)
	}
}
