package services

import (
	"sort"
	"time"

	"canopy-backend-go/internal/models"
)

type BadgeDefinition struct {
	Code             string
	Name             string
	ThresholdMinutes int
}

// BadgeDefinitions are ordered by threshold.
var BadgeDefinitions = []BadgeDefinition{
	{Code: "SEEDLING", Name: "Seedling", ThresholdMinutes: 600},
	{Code: "GROVE_GUARDIAN", Name: "Grove Guardian", ThresholdMinutes: 3000},
	{Code: "FOREST_CHAMPION", Name: "Forest Champion", ThresholdMinutes: 6000},
}

type Badge struct {
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	ThresholdMinutes int        `json:"thresholdMinutes"`
	Earned           bool       `json:"earned"`
	EarnedAt         *time.Time `json:"earnedAt,omitempty"`
	EarnedByEntryID  string     `json:"earnedByEntryId,omitempty"`
}

// ComputeBadges scans hours entries in creation order and credits each badge to
// the entry whose cumulative total first reaches its threshold. Entries with
// equal timestamps keep their input order.
func ComputeBadges(entries []models.HoursEntry) []Badge {
	ordered := make([]models.HoursEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	badges := make([]Badge, len(BadgeDefinitions))
	for i, def := range BadgeDefinitions {
		badges[i] = Badge{Code: def.Code, Name: def.Name, ThresholdMinutes: def.ThresholdMinutes}
	}
	total := 0
	for _, entry := range ordered {
		if entry.Minutes <= 0 {
			continue
		}
		total += entry.Minutes
		for i := range badges {
			if badges[i].Earned || total < badges[i].ThresholdMinutes {
				continue
			}
			earnedAt := entry.CreatedAt
			badges[i].Earned = true
			badges[i].EarnedAt = &earnedAt
			badges[i].EarnedByEntryID = entry.ID
		}
	}
	return badges
}

// NextBadge returns the first unearned badge and the minutes still needed, or
// nil when every badge is earned.
func NextBadge(badges []Badge, totalMinutes int) (*Badge, int) {
	for i := range badges {
		if !badges[i].Earned {
			remaining := badges[i].ThresholdMinutes - totalMinutes
			if remaining < 0 {
				remaining = 0
			}
			return &badges[i], remaining
		}
	}
	return nil, 0
}
