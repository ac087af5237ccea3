package services

import (
	"context"
	"time"

	"canopy-backend-go/internal/notify"

	"github.com/jmoiron/sqlx"
)

type Reminder struct {
	SignupID   string    `db:"signup_id"`
	EventID    string    `db:"event_id"`
	UserID     string    `db:"user_id"`
	Email      string    `db:"email"`
	Name       string    `db:"name"`
	EventTitle string    `db:"event_title"`
	StartsAt   time.Time `db:"starts_at"`
	Location   *string   `db:"location"`
	IsOnline   bool      `db:"is_online"`
}

// ClaimDueReminders marks and returns, in one statement, every signup of an
// active user for a published event starting within window that has not been
// reminded. A row is claimed by exactly one caller even when several
// instances run at once.
func ClaimDueReminders(ctx context.Context, database *sqlx.DB, now time.Time, window time.Duration) ([]Reminder, error) {
	if window <= 0 {
		return nil, ErrBadRequest("Reminder window must be positive")
	}
	reminders := []Reminder{}
	err := database.SelectContext(ctx, &reminders, `
UPDATE event_signups s
SET reminder_sent_at = $1
FROM events e, users u
WHERE e.id = s.event_id
  AND u.id = s.user_id
  AND s.reminder_sent_at IS NULL
  AND e.status = 'PUBLISHED'
  AND e.starts_at > $1
  AND e.starts_at <= $2
  AND u.is_active
RETURNING s.id AS signup_id, s.event_id, s.user_id, u.email, u.name, e.title AS event_title,
          e.starts_at, e.location, e.is_online
`, now.UTC(), now.UTC().Add(window))
	return reminders, err
}

func ReminderEffects(reminders []Reminder) []Effect {
	effects := make([]Effect, 0, len(reminders))
	for _, r := range reminders {
		where := "online"
		if !r.IsOnline && r.Location != nil {
			where = *r.Location
		}
		effects = appendEffects(effects, emailEffect(r.Email,
			"Reminder: "+r.EventTitle+" is coming up",
			"See you soon!",
			[]string{
				"Hi " + r.Name + ",",
				"This is a friendly reminder that \"" + r.EventTitle + "\" starts " + formatWhen(r.StartsAt) + ".",
				"Where: " + where,
				"If you can no longer make it, please cancel so someone else can take your spot.",
			},
			&notify.CTA{Label: "View event", URL: "/events/" + r.EventID}))
	}
	return effects
}
