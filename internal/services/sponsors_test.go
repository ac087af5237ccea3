package services

import (
	"math"
	"testing"
)

func TestValidatePledge(t *testing.T) {
	kind, amount, err := validatePledge(PledgeInput{Type: " funds ", Amount: floatPtr(250.456)})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if kind != SponsorshipFunds || amount == nil || *amount != 250.46 {
		t.Fatalf("unexpected kind=%s amount=%v", kind, amount)
	}

	kind, amount, err = validatePledge(PledgeInput{Type: "IN_KIND"})
	if err != nil || kind != SponsorshipInKind || amount != nil {
		t.Fatalf("in-kind without amount: kind=%s amount=%v err=%v", kind, amount, err)
	}
}

func TestValidatePledgeRejects(t *testing.T) {
	cases := []struct {
		name  string
		input PledgeInput
	}{
		{"unknown type", PledgeInput{Type: "STOCK", Amount: floatPtr(10)}},
		{"funds without amount", PledgeInput{Type: "FUNDS"}},
		{"zero amount", PledgeInput{Type: "FUNDS", Amount: floatPtr(0)}},
		{"negative in-kind amount", PledgeInput{Type: "IN_KIND", Amount: floatPtr(-3)}},
		{"rounds to zero", PledgeInput{Type: "FUNDS", Amount: floatPtr(0.001)}},
		{"nan", PledgeInput{Type: "FUNDS", Amount: floatPtr(math.NaN())}},
	}
	for _, tc := range cases {
		_, _, err := validatePledge(tc.input)
		if statusOf(t, err) != 400 {
			t.Fatalf("%s: expected 400, got %v", tc.name, err)
		}
	}
}
