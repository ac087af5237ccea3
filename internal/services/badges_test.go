package services

import (
	"testing"
	"time"

	"canopy-backend-go/internal/models"
)

func hoursEntry(id string, minutes int, at time.Time) models.HoursEntry {
	return models.HoursEntry{ID: id, Minutes: minutes, CreatedAt: at}
}

func TestComputeBadgesCreditsCrossingEntry(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []models.HoursEntry{
		hoursEntry("c", 2500, base.Add(2*time.Hour)),
		hoursEntry("a", 300, base),
		hoursEntry("b", 300, base.Add(time.Hour)),
	}
	badges := ComputeBadges(entries)
	if len(badges) != len(BadgeDefinitions) {
		t.Fatalf("expected %d badges, got %d", len(BadgeDefinitions), len(badges))
	}
	seedling := badges[0]
	if !seedling.Earned || seedling.EarnedByEntryID != "b" {
		t.Fatalf("seedling should be earned by b, got %+v", seedling)
	}
	if !seedling.EarnedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected earnedAt %v", seedling.EarnedAt)
	}
	guardian := badges[1]
	if !guardian.Earned || guardian.EarnedByEntryID != "c" {
		t.Fatalf("guardian should be earned by c, got %+v", guardian)
	}
	if badges[2].Earned {
		t.Fatal("champion should not be earned at 3100 minutes")
	}
}

func TestComputeBadgesExactThreshold(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	badges := ComputeBadges([]models.HoursEntry{hoursEntry("only", 600, at)})
	if !badges[0].Earned {
		t.Fatal("reaching the threshold exactly earns the badge")
	}
}

func TestComputeBadgesEqualTimestampsKeepInputOrder(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	badges := ComputeBadges([]models.HoursEntry{
		hoursEntry("first", 400, at),
		hoursEntry("second", 400, at),
		hoursEntry("third", 400, at),
	})
	if badges[0].EarnedByEntryID != "second" {
		t.Fatalf("expected second, got %q", badges[0].EarnedByEntryID)
	}
}

func TestComputeBadgesSkipsNonPositive(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	badges := ComputeBadges([]models.HoursEntry{
		hoursEntry("neg", -1000, at),
		hoursEntry("pos", 600, at.Add(time.Minute)),
	})
	if badges[0].EarnedByEntryID != "pos" {
		t.Fatalf("negative entries must not count, got %+v", badges[0])
	}
}

func TestComputeBadgesEmpty(t *testing.T) {
	for _, badge := range ComputeBadges(nil) {
		if badge.Earned {
			t.Fatalf("nothing earned without hours: %+v", badge)
		}
	}
}

func TestNextBadge(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	badges := ComputeBadges([]models.HoursEntry{hoursEntry("a", 700, at)})
	next, remaining := NextBadge(badges, 700)
	if next == nil || next.Code != "GROVE_GUARDIAN" || remaining != 2300 {
		t.Fatalf("unexpected next badge %+v remaining=%d", next, remaining)
	}
	all := ComputeBadges([]models.HoursEntry{hoursEntry("a", 7000, at)})
	if next, _ := NextBadge(all, 7000); next != nil {
		t.Fatalf("expected no next badge, got %+v", next)
	}
}
