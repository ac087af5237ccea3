package services

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type CountByKey struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

type SponsorshipTotals struct {
	Status string  `db:"status" json:"status"`
	Count  int     `db:"count" json:"count"`
	Funds  float64 `db:"funds" json:"funds"`
}

type TopVolunteer struct {
	UserID  string `db:"user_id" json:"userId"`
	Name    string `db:"name" json:"name"`
	Minutes int64  `db:"minutes" json:"minutes"`
}

type EngagementOverview struct {
	UsersByRole         []CountByKey        `json:"usersByRole"`
	EventsByStatus      []CountByKey        `json:"eventsByStatus"`
	EventsByApproval    []CountByKey        `json:"eventsByApproval"`
	Signups             int                 `json:"signups"`
	CheckIns            int                 `json:"checkIns"`
	CheckOuts           int                 `json:"checkOuts"`
	TotalMinutes        int64               `json:"totalMinutes"`
	Sponsorships        []SponsorshipTotals `json:"sponsorships"`
	PendingModeration   map[string]int      `json:"pendingModeration"`
	MeanDecisionSeconds *float64            `json:"meanDecisionSeconds"`
	TopVolunteers       []TopVolunteer      `json:"topVolunteers"`
}

func GetEngagementOverview(ctx context.Context, db *sqlx.DB) (EngagementOverview, error) {
	out := EngagementOverview{PendingModeration: map[string]int{}}
	if err := db.SelectContext(ctx, &out.UsersByRole, `
SELECT r AS key, count(*) AS count
FROM users, unnest(roles) AS r
WHERE is_active
GROUP BY r
ORDER BY r
`); err != nil {
		return out, err
	}
	if err := db.SelectContext(ctx, &out.EventsByStatus, `SELECT status AS key, count(*) AS count FROM events GROUP BY status ORDER BY status`); err != nil {
		return out, err
	}
	if err := db.SelectContext(ctx, &out.EventsByApproval, `SELECT approval_status AS key, count(*) AS count FROM events GROUP BY approval_status ORDER BY approval_status`); err != nil {
		return out, err
	}
	counts := struct {
		Signups   int   `db:"signups"`
		CheckIns  int   `db:"check_ins"`
		CheckOuts int   `db:"check_outs"`
		Minutes   int64 `db:"minutes"`
	}{}
	if err := db.GetContext(ctx, &counts, `
SELECT (SELECT count(*) FROM event_signups) AS signups,
       (SELECT count(*) FROM event_attendance WHERE check_in_at IS NOT NULL) AS check_ins,
       (SELECT count(*) FROM event_attendance WHERE check_out_at IS NOT NULL) AS check_outs,
       (SELECT COALESCE(sum(minutes), 0)::bigint FROM volunteer_hours) AS minutes
`); err != nil {
		return out, err
	}
	out.Signups, out.CheckIns, out.CheckOuts, out.TotalMinutes = counts.Signups, counts.CheckIns, counts.CheckOuts, counts.Minutes

	if err := db.SelectContext(ctx, &out.Sponsorships, `
SELECT status, count(*) AS count, COALESCE(sum(amount) FILTER (WHERE type = 'FUNDS'), 0)::float8 AS funds
FROM sponsorships
GROUP BY status
ORDER BY status
`); err != nil {
		return out, err
	}

	pending := []CountByKey{}
	if err := db.SelectContext(ctx, &pending, `
SELECT 'EVENT' AS key, count(*) AS count FROM events WHERE approval_status = 'PENDING'
UNION ALL SELECT 'SPONSOR_PROFILE', count(*) FROM sponsor_profiles WHERE status = 'PENDING'
UNION ALL SELECT 'MEDIA', count(*) FROM event_media WHERE status = 'PENDING'
UNION ALL SELECT 'STORY', count(*) FROM event_stories WHERE status = 'PENDING'
`); err != nil {
		return out, err
	}
	for _, p := range pending {
		out.PendingModeration[p.Key] = p.Count
	}

	if err := db.GetContext(ctx, &out.MeanDecisionSeconds, `
SELECT avg(t)::float8 FROM (
  SELECT time_to_decision_seconds AS t FROM event_media WHERE time_to_decision_seconds IS NOT NULL
  UNION ALL
  SELECT time_to_decision_seconds FROM event_stories WHERE time_to_decision_seconds IS NOT NULL
) decisions
`); err != nil {
		return out, err
	}
	if out.MeanDecisionSeconds != nil {
		rounded := round2(*out.MeanDecisionSeconds)
		out.MeanDecisionSeconds = &rounded
	}

	out.TopVolunteers = []TopVolunteer{}
	err := db.SelectContext(ctx, &out.TopVolunteers, `
SELECT u.id AS user_id, u.name, sum(h.minutes)::bigint AS minutes
FROM volunteer_hours h
JOIN users u ON u.id = h.user_id
GROUP BY u.id, u.name
ORDER BY minutes DESC, u.name ASC
LIMIT 10
`)
	return out, err
}

type EventStats struct {
	EventID             string  `json:"eventId"`
	Capacity            int     `json:"capacity"`
	Signups             int     `json:"signups" db:"signups"`
	FillRate            float64 `json:"fillRate"`
	CheckedIn           int     `json:"checkedIn" db:"checked_in"`
	CheckedOut          int     `json:"checkedOut" db:"checked_out"`
	Minutes             int64   `json:"minutes" db:"minutes"`
	Tasks               int     `json:"tasks" db:"tasks"`
	Assignments         int     `json:"assignments" db:"assignments"`
	CompletedAssignment int     `json:"completedAssignments" db:"completed_assignments"`
	ApprovedFunds       float64 `json:"approvedFunds" db:"approved_funds"`
	GalleryViews        int64   `json:"galleryViews" db:"gallery_views"`
}

// GetEventAnalytics summarizes one event for its manager.
func GetEventAnalytics(ctx context.Context, db *sqlx.DB, actor Actor, eventID string) (EventStats, error) {
	event, err := getEventForManager(ctx, db, actor, eventID)
	if err != nil {
		return EventStats{}, err
	}
	var stats EventStats
	if err := db.GetContext(ctx, &stats, `
SELECT
  (SELECT count(*) FROM event_signups WHERE event_id = $1) AS signups,
  (SELECT count(*) FROM event_attendance WHERE event_id = $1 AND check_in_at IS NOT NULL) AS checked_in,
  (SELECT count(*) FROM event_attendance WHERE event_id = $1 AND check_out_at IS NOT NULL) AS checked_out,
  (SELECT COALESCE(sum(minutes), 0)::bigint FROM volunteer_hours WHERE event_id = $1) AS minutes,
  (SELECT count(*) FROM event_tasks WHERE event_id = $1) AS tasks,
  (SELECT count(*) FROM event_assignments WHERE event_id = $1) AS assignments,
  (SELECT count(*) FROM event_assignments WHERE event_id = $1 AND status = 'COMPLETED') AS completed_assignments,
  (SELECT COALESCE(sum(amount), 0)::float8 FROM sponsorships WHERE event_id = $1 AND status = 'APPROVED' AND type = 'FUNDS') AS approved_funds,
  (SELECT COALESCE(sum(view_count), 0)::bigint FROM event_media WHERE event_id = $1 AND status = 'APPROVED') AS gallery_views
`, eventID); err != nil {
		return EventStats{}, err
	}
	stats.EventID = event.ID
	stats.Capacity = event.Capacity
	stats.FillRate = fillRate(stats.Signups, event.Capacity)
	return stats, nil
}

func fillRate(signups, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return round2(float64(signups) / float64(capacity))
}
