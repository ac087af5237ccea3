package services

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"canopy-backend-go/internal/db"
	"canopy-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	HoursSourceAttendance = "ATTENDANCE"
	HoursSourceSelfReport = "SELF_REPORT"

	attendanceNote = "Auto-tracked via event attendance"
)

const attendanceColumns = `id, event_id, user_id, check_in_at, check_out_at, minutes, hours_entry_id, created_at, updated_at`

type AttendanceResult struct {
	Attendance        models.EventAttendance
	AlreadyCheckedIn  bool
	AlreadyCheckedOut bool
}

// ComputeAttendanceMinutes returns the minutes credited for one attendance
// cycle: the override when given, otherwise the elapsed time rounded to the
// nearest minute. The result is never below one.
func ComputeAttendanceMinutes(checkIn, checkOut time.Time, override *float64) (int, error) {
	var minutes float64
	if override != nil {
		if math.IsNaN(*override) || math.IsInf(*override, 0) || *override <= 0 {
			return 0, ErrBadRequest("Minutes override must be a positive number")
		}
		minutes = math.Round(*override)
	} else {
		minutes = math.Round(checkOut.Sub(checkIn).Minutes())
	}
	if minutes < 1 {
		return 1, nil
	}
	return int(minutes), nil
}

// CheckIn stamps check-in for (event, user). A repeated call returns the
// existing record flagged AlreadyCheckedIn.
func CheckIn(ctx context.Context, database *sqlx.DB, actor Actor, eventID, userID string) (AttendanceResult, []Effect, error) {
	if userID == "" {
		userID = actor.ID
	}
	now := time.Now().UTC()
	var result AttendanceResult
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		event, err := attendanceEvent(ctx, tx, actor, eventID, userID)
		if err != nil {
			return err
		}
		if err := lockSignup(ctx, tx, event.ID, userID); err != nil {
			return err
		}
		existing, err := findAttendance(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		if existing != nil && existing.CheckInAt != nil {
			result = AttendanceResult{Attendance: *existing, AlreadyCheckedIn: true}
			return nil
		}
		var attendance models.EventAttendance
		if existing == nil {
			err = tx.GetContext(ctx, &attendance, `
INSERT INTO event_attendance (id, event_id, user_id, check_in_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$4,$4)
RETURNING `+attendanceColumns, uuid.NewString(), eventID, userID, now)
		} else {
			err = tx.GetContext(ctx, &attendance, `
UPDATE event_attendance SET check_in_at = $2, updated_at = $2
WHERE id = $1
RETURNING `+attendanceColumns, existing.ID, now)
		}
		if err != nil {
			return err
		}
		result = AttendanceResult{Attendance: attendance}
		return nil
	})
	if err != nil {
		return AttendanceResult{}, nil, err
	}
	if result.AlreadyCheckedIn {
		return result, nil, nil
	}
	return result, []Effect{activityEffect("attendance.checked_in", "EVENT", eventID, actor.ID, now,
		map[string]interface{}{"userId": userID})}, nil
}

// CheckOut closes the attendance cycle, computing minutes once and creating
// exactly one hours entry. Repeated calls return the stored result flagged
// AlreadyCheckedOut and write nothing.
func CheckOut(ctx context.Context, database *sqlx.DB, actor Actor, eventID, userID string, override *float64) (AttendanceResult, []Effect, error) {
	if userID == "" {
		userID = actor.ID
	}
	now := time.Now().UTC()
	var result AttendanceResult
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		event, err := attendanceEvent(ctx, tx, actor, eventID, userID)
		if err != nil {
			return err
		}
		if err := lockSignup(ctx, tx, event.ID, userID); err != nil {
			return err
		}
		existing, err := findAttendance(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		if existing == nil || existing.CheckInAt == nil {
			return ErrBadRequest("Check in before checking out")
		}
		if existing.CheckOutAt != nil {
			result = AttendanceResult{Attendance: *existing, AlreadyCheckedOut: true}
			return nil
		}
		minutes, err := ComputeAttendanceMinutes(*existing.CheckInAt, now, override)
		if err != nil {
			return err
		}
		hoursEntryID := existing.HoursEntryID
		if hoursEntryID == nil {
			id := uuid.NewString()
			if _, err := tx.ExecContext(ctx, `
INSERT INTO volunteer_hours (id, user_id, event_id, minutes, note, source, verified_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, id, userID, eventID, minutes, attendanceNote, HoursSourceAttendance, event.CreatedBy, now); err != nil {
				return err
			}
			hoursEntryID = &id
		}
		var attendance models.EventAttendance
		if err := tx.GetContext(ctx, &attendance, `
UPDATE event_attendance
SET check_out_at = $2, minutes = $3, hours_entry_id = $4, updated_at = $2
WHERE id = $1
RETURNING `+attendanceColumns, existing.ID, now, minutes, *hoursEntryID); err != nil {
			return err
		}
		result = AttendanceResult{Attendance: attendance}
		return nil
	})
	if err != nil {
		return AttendanceResult{}, nil, err
	}
	if result.AlreadyCheckedOut {
		return result, nil, nil
	}
	return result, []Effect{activityEffect("attendance.checked_out", "EVENT", eventID, actor.ID, now,
		map[string]interface{}{"userId": userID, "minutes": result.Attendance.Minutes})}, nil
}

// RecordVolunteerHours adds a self-reported ledger entry. It does not touch
// attendance.
func RecordVolunteerHours(ctx context.Context, database *sqlx.DB, actor Actor, eventID string, minutes int, note *string) (models.HoursEntry, error) {
	if minutes <= 0 {
		return models.HoursEntry{}, ErrBadRequest("Minutes must be greater than zero")
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return models.HoursEntry{}, ErrNotFound("Event not found")
	}
	event, err := getEvent(ctx, database, eventID)
	if err != nil {
		return models.HoursEntry{}, err
	}
	if err := requireTrackedEvent(event); err != nil {
		return models.HoursEntry{}, err
	}
	if err := requireSignup(ctx, database, eventID, actor.ID); err != nil {
		return models.HoursEntry{}, err
	}
	var entry models.HoursEntry
	err = database.GetContext(ctx, &entry, `
INSERT INTO volunteer_hours (id, user_id, event_id, minutes, note, source, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, user_id, event_id, minutes, note, source, verified_by, created_at
`, uuid.NewString(), actor.ID, eventID, minutes, trimOptional(note), HoursSourceSelfReport, time.Now().UTC())
	if err != nil {
		return models.HoursEntry{}, WrapError(err, "record hours")
	}
	return entry, nil
}

type HoursDetail struct {
	models.HoursEntry
	EventTitle *string `db:"event_title"`
}

func ListHours(ctx context.Context, q sqlx.QueryerContext, userID string) ([]HoursDetail, error) {
	rows := []HoursDetail{}
	err := sqlx.SelectContext(ctx, q, &rows, `
SELECT h.id, h.user_id, h.event_id, h.minutes, h.note, h.source, h.verified_by, h.created_at,
       e.title AS event_title
FROM volunteer_hours h
LEFT JOIN events e ON e.id = h.event_id
WHERE h.user_id = $1
ORDER BY h.created_at ASC, h.id ASC
`, userID)
	return rows, err
}

type VolunteerSummary struct {
	TotalMinutes   int     `json:"totalMinutes"`
	TotalHours     float64 `json:"totalHours"`
	Entries        int     `json:"entries"`
	EventsAttended int     `json:"eventsAttended"`
	Badges         []Badge `json:"badges"`
	NextBadge      *Badge  `json:"nextBadge,omitempty"`
	MinutesToNext  int     `json:"minutesToNext"`
}

func GetVolunteerSummary(ctx context.Context, database *sqlx.DB, userID string) (VolunteerSummary, error) {
	rows, err := ListHours(ctx, database, userID)
	if err != nil {
		return VolunteerSummary{}, err
	}
	entries := make([]models.HoursEntry, 0, len(rows))
	total := 0
	for _, row := range rows {
		entries = append(entries, row.HoursEntry)
		total += row.Minutes
	}
	var attended int
	if err := database.GetContext(ctx, &attended, `
SELECT count(*) FROM event_attendance WHERE user_id = $1 AND check_out_at IS NOT NULL
`, userID); err != nil {
		return VolunteerSummary{}, err
	}
	badges := ComputeBadges(entries)
	next, remaining := NextBadge(badges, total)
	return VolunteerSummary{
		TotalMinutes:   total,
		TotalHours:     math.Round(float64(total)/60*100) / 100,
		Entries:        len(entries),
		EventsAttended: attended,
		Badges:         badges,
		NextBadge:      next,
		MinutesToNext:  remaining,
	}, nil
}

type AttendanceDetail struct {
	models.EventAttendance
	UserName  string `db:"user_name"`
	UserEmail string `db:"user_email"`
}

// ListAttendance is the event roster with check-in state per volunteer.
func ListAttendance(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) ([]AttendanceDetail, error) {
	if _, err := getEventForManager(ctx, database, actor, eventID); err != nil {
		return nil, err
	}
	rows := []AttendanceDetail{}
	err := database.SelectContext(ctx, &rows, `
SELECT a.id, a.event_id, a.user_id, a.check_in_at, a.check_out_at, a.minutes, a.hours_entry_id,
       a.created_at, a.updated_at, u.name AS user_name, u.email AS user_email
FROM event_attendance a
JOIN users u ON u.id = a.user_id
WHERE a.event_id = $1
ORDER BY a.check_in_at ASC NULLS LAST
`, eventID)
	return rows, err
}

// attendanceEvent loads the event and checks that actor may record attendance
// for userID: volunteers for themselves, managers for their event.
func attendanceEvent(ctx context.Context, tx *sqlx.Tx, actor Actor, eventID, userID string) (models.Event, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return models.Event{}, ErrNotFound("Event not found")
	}
	event, err := getEvent(ctx, tx, eventID)
	if err != nil {
		return models.Event{}, err
	}
	if userID != actor.ID && !canManageEvent(actor, event) {
		return models.Event{}, ErrForbidden("You cannot record attendance for this volunteer")
	}
	if err := requireTrackedEvent(event); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

// requireTrackedEvent admits only events whose time can be credited.
func requireTrackedEvent(event models.Event) error {
	switch EventStatus(event.Status) {
	case EventPublished, EventCompleted:
		return nil
	}
	return ErrBadRequest("Attendance is only tracked for published events")
}

// lockSignup serializes attendance writes for one (event, user).
func lockSignup(ctx context.Context, tx *sqlx.Tx, eventID, userID string) error {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM event_signups WHERE event_id = $1 AND user_id = $2 FOR UPDATE`, eventID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBadRequest("Volunteer is not signed up for this event")
	}
	return err
}

func findAttendance(ctx context.Context, tx *sqlx.Tx, eventID, userID string) (*models.EventAttendance, error) {
	var attendance models.EventAttendance
	err := tx.GetContext(ctx, &attendance, `SELECT `+attendanceColumns+` FROM event_attendance WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attendance, nil
}
