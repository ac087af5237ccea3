package services

import (
	"math"
	"testing"
	"time"

	"canopy-backend-go/internal/models"
)

func TestComputeAttendanceMinutesElapsed(t *testing.T) {
	in := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	minutes, err := ComputeAttendanceMinutes(in, in.Add(90*time.Minute+29*time.Second), nil)
	if err != nil || minutes != 90 {
		t.Fatalf("expected 90, got %d err=%v", minutes, err)
	}
	minutes, _ = ComputeAttendanceMinutes(in, in.Add(90*time.Minute+30*time.Second), nil)
	if minutes != 91 {
		t.Fatalf("expected 91, got %d", minutes)
	}
}

func TestComputeAttendanceMinutesFloorOfOne(t *testing.T) {
	in := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	minutes, err := ComputeAttendanceMinutes(in, in.Add(10*time.Second), nil)
	if err != nil || minutes != 1 {
		t.Fatalf("expected 1, got %d err=%v", minutes, err)
	}
	minutes, _ = ComputeAttendanceMinutes(in, in, nil)
	if minutes != 1 {
		t.Fatalf("zero elapsed still credits one minute, got %d", minutes)
	}
	small := 0.2
	minutes, err = ComputeAttendanceMinutes(in, in, &small)
	if err != nil || minutes != 1 {
		t.Fatalf("tiny override rounds up to 1, got %d err=%v", minutes, err)
	}
}

func TestComputeAttendanceMinutesOverride(t *testing.T) {
	in := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	override := 45.6
	minutes, err := ComputeAttendanceMinutes(in, in.Add(5*time.Hour), &override)
	if err != nil || minutes != 46 {
		t.Fatalf("expected 46, got %d err=%v", minutes, err)
	}
}

func TestComputeAttendanceMinutesRejectsBadOverride(t *testing.T) {
	in := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for _, v := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		value := v
		_, err := ComputeAttendanceMinutes(in, in.Add(time.Hour), &value)
		if statusOf(t, err) != 400 {
			t.Fatalf("override %v should be rejected", v)
		}
	}
}

func TestRequireTrackedEvent(t *testing.T) {
	cases := map[EventStatus]bool{
		EventDraft:     false,
		EventCancelled: false,
		EventPublished: true,
		EventCompleted: true,
	}
	for status, ok := range cases {
		err := requireTrackedEvent(models.Event{Status: string(status)})
		if ok && err != nil {
			t.Fatalf("%s: unexpected error %v", status, err)
		}
		if !ok {
			svcErr, isSvc := AsServiceError(err)
			if !isSvc || svcErr.Status != 400 {
				t.Fatalf("%s: expected 400, got %v", status, err)
			}
		}
	}
}
