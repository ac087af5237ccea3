package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"canopy-backend-go/internal/db"
	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/notify"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SignupResult struct {
	Signup    models.EventSignup
	Event     models.Event
	SeatsLeft int
}

// Signup registers actor for a published event. The event row is locked for
// the whole check-then-insert so the capacity count cannot go stale: the
// first committer takes the last seat and later callers get 409.
func Signup(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) (SignupResult, []Effect, error) {
	if !actor.Has(RoleVolunteer) {
		return SignupResult{}, nil, ErrForbidden("Only volunteers can sign up for events")
	}
	now := time.Now().UTC()
	var result SignupResult
	var manager *models.User
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if EventStatus(event.Status) != EventPublished {
			return ErrBadRequest("Event is not open for signups")
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM event_signups WHERE event_id = $1 AND user_id = $2)`, eventID, actor.ID); err != nil {
			return err
		}
		if exists {
			return ErrConflict("You are already signed up for this event")
		}
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT count(*) FROM event_signups WHERE event_id = $1`, eventID); err != nil {
			return err
		}
		if count >= event.Capacity {
			return ErrConflict("Event is at capacity")
		}
		signup := models.EventSignup{
			ID:        uuid.NewString(),
			EventID:   eventID,
			UserID:    actor.ID,
			Status:    "CONFIRMED",
			CreatedAt: now,
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO event_signups (id, event_id, user_id, status, created_at)
VALUES ($1,$2,$3,$4,$5)
`, signup.ID, signup.EventID, signup.UserID, signup.Status, signup.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("You are already signed up for this event")
			}
			return err
		}
		result = SignupResult{Signup: signup, Event: event, SeatsLeft: event.Capacity - count - 1}
		manager, err = eventManager(ctx, tx, event)
		return err
	})
	if err != nil {
		return SignupResult{}, nil, err
	}

	event := result.Event
	effects := []Effect{
		activityEffect("signup.created", "EVENT", eventID, actor.ID, now, map[string]interface{}{"seatsLeft": result.SeatsLeft}),
	}
	effects = appendEffects(effects, emailEffect(actor.Email,
		"You're signed up: "+event.Title,
		"See you there!",
		[]string{
			"Hi " + actor.Name + ",",
			"You're confirmed for \"" + event.Title + "\" on " + formatWhen(event.StartsAt) + ".",
			"We'll send a reminder the day before.",
		},
		&notify.CTA{Label: "View event", URL: "/events/" + eventID}))
	if manager != nil {
		effects = appendEffects(effects, emailEffect(manager.Email,
			"New volunteer for "+event.Title,
			"A volunteer just signed up",
			[]string{
				actor.Name + " (" + actor.Email + ") signed up for \"" + event.Title + "\".",
				fmt.Sprintf("%d of %d seats remain.", result.SeatsLeft, event.Capacity),
			},
			&notify.CTA{Label: "Manage volunteers", URL: "/manage/events/" + eventID}))
	}
	return result, effects, nil
}

type CancelResult struct {
	EventID            string
	UserID             string
	EventTitle         string
	RemovedMinutes     int
	RemovedAssignments int
	ManagerEmail       string
	ManagerName        string
}

// CancelSignup removes the volunteer's whole footprint on the event in one
// transaction: assignments, hours entries for the event, attendance and the
// signup itself. The volunteer or the event's manager may cancel.
func CancelSignup(ctx context.Context, database *sqlx.DB, actor Actor, eventID, userID string) (CancelResult, []Effect, error) {
	if userID == "" {
		userID = actor.ID
	}
	now := time.Now().UTC()
	result := CancelResult{EventID: eventID, UserID: userID}
	var volunteer models.User
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if userID != actor.ID && !canManageEvent(actor, event) {
			return ErrForbidden("You cannot cancel this signup")
		}
		result.EventTitle = event.Title

		var signupID string
		err = tx.GetContext(ctx, &signupID, `SELECT id FROM event_signups WHERE event_id = $1 AND user_id = $2 FOR UPDATE`, eventID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("Signup not found")
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM event_assignments WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		if err != nil {
			return err
		}
		assignments, _ := res.RowsAffected()
		result.RemovedAssignments = int(assignments)

		if _, err := tx.ExecContext(ctx, `DELETE FROM event_attendance WHERE event_id = $1 AND user_id = $2`, eventID, userID); err != nil {
			return err
		}
		removed := []int{}
		if err := tx.SelectContext(ctx, &removed, `DELETE FROM volunteer_hours WHERE event_id = $1 AND user_id = $2 RETURNING minutes`, eventID, userID); err != nil {
			return err
		}
		for _, minutes := range removed {
			result.RemovedMinutes += minutes
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_signups WHERE id = $1`, signupID); err != nil {
			return err
		}

		volunteer, err = GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		manager, err := eventManager(ctx, tx, event)
		if err != nil {
			return err
		}
		if manager != nil {
			result.ManagerEmail = manager.Email
			result.ManagerName = manager.Name
		}
		return nil
	})
	if err != nil {
		return CancelResult{}, nil, err
	}

	effects := []Effect{
		activityEffect("signup.cancelled", "EVENT", eventID, actor.ID, now, map[string]interface{}{
			"userId":         userID,
			"removedMinutes": result.RemovedMinutes,
		}),
	}
	if result.ManagerEmail != "" {
		effects = appendEffects(effects, emailEffect(result.ManagerEmail,
			"Volunteer cancelled: "+result.EventTitle,
			"A volunteer has left your event",
			[]string{
				"Hi " + result.ManagerName + ",",
				volunteer.Name + " is no longer signed up for \"" + result.EventTitle + "\".",
			},
			&notify.CTA{Label: "Manage volunteers", URL: "/manage/events/" + eventID}))
	}
	if userID != actor.ID {
		effects = appendEffects(effects, emailEffect(volunteer.Email,
			"Your signup was cancelled: "+result.EventTitle,
			"Your signup was cancelled",
			[]string{
				"Hi " + volunteer.Name + ",",
				"The organizer removed your signup for \"" + result.EventTitle + "\".",
			},
			&notify.CTA{Label: "Find another event", URL: "/events"}))
	}
	return result, effects, nil
}

type SignupDetail struct {
	models.EventSignup
	UserName   string     `db:"user_name"`
	UserEmail  string     `db:"user_email"`
	CheckInAt  *time.Time `db:"check_in_at"`
	CheckOutAt *time.Time `db:"check_out_at"`
	Minutes    *int       `db:"minutes"`
}

func ListEventSignups(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) ([]SignupDetail, error) {
	event, err := getEventForManager(ctx, database, actor, eventID)
	if err != nil {
		return nil, err
	}
	rows := []SignupDetail{}
	err = database.SelectContext(ctx, &rows, `
SELECT s.id, s.event_id, s.user_id, s.status, s.reminder_sent_at, s.created_at,
       u.name AS user_name, u.email AS user_email,
       a.check_in_at, a.check_out_at, a.minutes
FROM event_signups s
JOIN users u ON u.id = s.user_id
LEFT JOIN event_attendance a ON a.event_id = s.event_id AND a.user_id = s.user_id
WHERE s.event_id = $1
ORDER BY s.created_at ASC
`, event.ID)
	return rows, err
}

type UserSignup struct {
	models.EventSignup
	EventTitle  string    `db:"event_title"`
	EventStatus string    `db:"event_status"`
	StartsAt    time.Time `db:"starts_at"`
	EndsAt      time.Time `db:"ends_at"`
	Location    *string   `db:"location"`
	IsOnline    bool      `db:"is_online"`
}

func ListUserSignups(ctx context.Context, database *sqlx.DB, userID string) ([]UserSignup, error) {
	rows := []UserSignup{}
	err := database.SelectContext(ctx, &rows, `
SELECT s.id, s.event_id, s.user_id, s.status, s.reminder_sent_at, s.created_at,
       e.title AS event_title, e.status AS event_status, e.starts_at, e.ends_at, e.location, e.is_online
FROM event_signups s
JOIN events e ON e.id = s.event_id
WHERE s.user_id = $1
ORDER BY e.starts_at ASC
`, userID)
	return rows, err
}

func getEventForManager(ctx context.Context, q sqlx.QueryerContext, actor Actor, eventID string) (models.Event, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return models.Event{}, ErrNotFound("Event not found")
	}
	event, err := getEvent(ctx, q, eventID)
	if err != nil {
		return models.Event{}, err
	}
	if !canManageEvent(actor, event) {
		return models.Event{}, ErrForbidden("You cannot manage this event")
	}
	return event, nil
}

func eventManager(ctx context.Context, q sqlx.QueryerContext, event models.Event) (*models.User, error) {
	if event.CreatedBy == nil {
		return nil, nil
	}
	user, err := GetUser(ctx, q, *event.CreatedBy)
	if err != nil {
		if svcErr, ok := AsServiceError(err); ok && svcErr.Status == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func requireSignup(ctx context.Context, q sqlx.QueryerContext, eventID, userID string) error {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM event_signups WHERE event_id = $1 AND user_id = $2)`, eventID, userID); err != nil {
		return err
	}
	if !exists {
		return ErrBadRequest("Volunteer is not signed up for this event")
	}
	return nil
}
