package services

import (
	"context"
	"testing"
)

func TestParseModerationKind(t *testing.T) {
	cases := map[string]ModerationKind{
		"event":           KindEvent,
		"events":          KindEvent,
		"sponsor-profile": KindSponsorProfile,
		"sponsors":        KindSponsorProfile,
		"MEDIA":           KindMedia,
		" stories ":       KindStory,
	}
	for raw, want := range cases {
		got, err := ParseModerationKind(raw)
		if err != nil || got != want {
			t.Fatalf("%q: got %q err=%v", raw, got, err)
		}
	}
	if _, err := ParseModerationKind("comment"); statusOf(t, err) != 400 {
		t.Fatal("unknown kind should be 400")
	}
}

func TestParseDecision(t *testing.T) {
	for _, raw := range []string{"approve", "APPROVED"} {
		if d, err := ParseDecision(raw); err != nil || d != DecisionApprove {
			t.Fatalf("%q: %v %v", raw, d, err)
		}
	}
	for _, raw := range []string{"reject", "declined"} {
		if d, err := ParseDecision(raw); err != nil || d != DecisionReject {
			t.Fatalf("%q: %v %v", raw, d, err)
		}
	}
	if _, err := ParseDecision("maybe"); statusOf(t, err) != 400 {
		t.Fatal("unknown decision should be 400")
	}
}

func TestModerateRequiresAdmin(t *testing.T) {
	manager := Actor{ID: "u1", Roles: []string{string(RoleEventManager)}}
	_, _, err := Moderate(context.Background(), nil, manager, KindEvent, "x", DecisionApprove, nil)
	if statusOf(t, err) != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
}
