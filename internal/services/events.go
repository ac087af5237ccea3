package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"canopy-backend-go/internal/db"
	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/notify"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const eventColumns = `id, title, description, category, starts_at, ends_at, location, is_online, capacity,
       status, approval_status, approval_note, created_by, approved_by, submitted_at, approved_at,
       published_at, completed_at, cancelled_at, created_at, updated_at`

type EventInput struct {
	Title       string
	Description string
	Category    *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Location    *string
	IsOnline    bool
	Capacity    *int
}

func (in EventInput) normalize() (EventInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = trimOptional(in.Category)
	in.Location = trimOptional(in.Location)
	if in.Title == "" {
		return in, ErrBadRequest("Title is required")
	}
	if in.StartsAt == nil || in.EndsAt == nil {
		return in, ErrBadRequest("Start and end time are required")
	}
	if !in.StartsAt.Before(*in.EndsAt) {
		return in, ErrBadRequest("Event must end after it starts")
	}
	if in.Capacity == nil {
		return in, ErrBadRequest("Capacity is required")
	}
	if *in.Capacity <= 0 {
		return in, ErrBadRequest("Capacity must be greater than zero")
	}
	if in.Location == nil && !in.IsOnline {
		return in, ErrBadRequest("Location is required for in-person events")
	}
	return in, nil
}

// EventDetail is an event with its live enrollment numbers.
type EventDetail struct {
	models.Event
	SignupCount int    `db:"signup_count"`
	CreatorName string `db:"creator_name"`
}

func (e EventDetail) SeatsLeft() int {
	left := e.Capacity - e.SignupCount
	if left < 0 {
		return 0
	}
	return left
}

func CreateEvent(ctx context.Context, database *sqlx.DB, actor Actor, input EventInput) (models.Event, []Effect, error) {
	if !actor.Has(RoleEventManager, RoleAdmin) {
		return models.Event{}, nil, ErrForbidden("Only event managers can create events")
	}
	in, err := input.normalize()
	if err != nil {
		return models.Event{}, nil, err
	}
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = database.ExecContext(ctx, `
INSERT INTO events (id, title, description, category, starts_at, ends_at, location, is_online, capacity,
                    status, approval_status, created_by, submitted_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'DRAFT','PENDING',$10,$11,$11,$11)
`, id, in.Title, in.Description, in.Category, in.StartsAt.UTC(), in.EndsAt.UTC(), in.Location, in.IsOnline, *in.Capacity, actor.ID, now)
	if err != nil {
		return models.Event{}, nil, WrapError(err, "create event")
	}
	event, err := getEvent(ctx, database, id)
	if err != nil {
		return models.Event{}, nil, err
	}
	effects := []Effect{
		activityEffect("event.submitted", "EVENT", id, actor.ID, now, map[string]interface{}{"title": in.Title}),
	}
	return event, effects, nil
}

// UpdateEvent edits an event's details. It never touches either status axis;
// resubmitting a rejected event only changes what moderators see next.
func UpdateEvent(ctx context.Context, database *sqlx.DB, actor Actor, eventID string, input EventInput) (models.Event, error) {
	var updated models.Event
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if !canManageEvent(actor, event) {
			return ErrForbidden("You cannot edit this event")
		}
		in, err := input.normalize()
		if err != nil {
			return err
		}
		if EventStatus(event.Status) == EventCompleted || EventStatus(event.Status) == EventCancelled {
			return ErrConflict("Finished events cannot be edited")
		}
		var signups int
		if err := tx.GetContext(ctx, &signups, `SELECT count(*) FROM event_signups WHERE event_id = $1`, eventID); err != nil {
			return err
		}
		if *in.Capacity < signups {
			return ErrConflict(fmt.Sprintf("Capacity cannot be lower than the %d volunteers already signed up", signups))
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE events
SET title = $2, description = $3, category = $4, starts_at = $5, ends_at = $6,
    location = $7, is_online = $8, capacity = $9, updated_at = $10
WHERE id = $1
`, eventID, in.Title, in.Description, in.Category, in.StartsAt.UTC(), in.EndsAt.UTC(), in.Location, in.IsOnline, *in.Capacity, time.Now().UTC()); err != nil {
			return err
		}
		updated, err = lockEvent(ctx, tx, eventID)
		return err
	})
	return updated, err
}

func PublishEvent(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) (models.Event, []Effect, error) {
	return transitionAsOwner(ctx, database, actor, eventID, ActionPublish)
}

func CompleteEvent(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) (models.Event, []Effect, error) {
	return transitionAsOwner(ctx, database, actor, eventID, ActionComplete)
}

// CancelEvent cancels the event and notifies every volunteer signed up for it.
func CancelEvent(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) (models.Event, []Effect, error) {
	return transitionAsOwner(ctx, database, actor, eventID, ActionCancel)
}

func transitionAsOwner(ctx context.Context, database *sqlx.DB, actor Actor, eventID string, action EventAction) (models.Event, []Effect, error) {
	var after models.Event
	var effects []Effect
	now := time.Now().UTC()
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if !canManageEvent(actor, event) {
			return ErrForbidden("You cannot manage this event")
		}
		var changed bool
		after, changed, err = applyEventAction(ctx, tx, event, action, actor.ID, nil, now)
		if err != nil || !changed {
			return err
		}
		effects = appendEffects(effects, activityEffect("event."+strings.ToLower(string(action)), "EVENT", eventID, actor.ID, now,
			map[string]interface{}{"status": after.Status}))
		if action == ActionCancel {
			more, err := cancellationNotices(ctx, tx, after)
			if err != nil {
				return err
			}
			effects = append(effects, more...)
		}
		return nil
	})
	if err != nil {
		return models.Event{}, nil, err
	}
	return after, effects, nil
}

// applyEventAction runs the pure transition on a locked event row and persists
// the result. The caller must hold the row lock.
func applyEventAction(ctx context.Context, tx *sqlx.Tx, event models.Event, action EventAction, actorID string, note *string, now time.Time) (models.Event, bool, error) {
	state := eventState(event)
	next, changed, err := TransitionEvent(state, action, now)
	if err != nil {
		return event, false, err
	}
	moderation := action == ActionApprove || action == ActionReject
	if !changed && !moderation {
		return event, false, nil
	}
	approvedBy := event.ApprovedBy
	approvalNote := event.ApprovalNote
	if moderation {
		approvedBy = stringPtr(actorID)
		approvalNote = note
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE events
SET status = $2, approval_status = $3, approved_at = $4, published_at = $5, completed_at = $6,
    cancelled_at = $7, approved_by = $8, approval_note = $9, updated_at = $10
WHERE id = $1
`, event.ID, string(next.Status), string(next.Approval), next.ApprovedAt, next.PublishedAt, next.CompletedAt,
		next.CancelledAt, approvedBy, approvalNote, now); err != nil {
		return event, false, err
	}
	updated, err := lockEvent(ctx, tx, event.ID)
	if err != nil {
		return event, false, err
	}
	return updated, true, nil
}

func cancellationNotices(ctx context.Context, tx *sqlx.Tx, event models.Event) ([]Effect, error) {
	rows := []struct {
		Email string `db:"email"`
		Name  string `db:"name"`
	}{}
	if err := tx.SelectContext(ctx, &rows, `
SELECT u.email, u.name
FROM event_signups s
JOIN users u ON u.id = s.user_id
WHERE s.event_id = $1 AND u.is_active
`, event.ID); err != nil {
		return nil, err
	}
	effects := make([]Effect, 0, len(rows))
	for _, row := range rows {
		effects = appendEffects(effects, emailEffect(row.Email,
			"Event cancelled: "+event.Title,
			"This event has been cancelled",
			[]string{
				"Hi " + row.Name + ",",
				"Unfortunately \"" + event.Title + "\" scheduled for " + formatWhen(event.StartsAt) + " has been cancelled.",
				"Thank you for being ready to help. Browse other upcoming events to find a new way to volunteer.",
			},
			&notify.CTA{Label: "Find another event", URL: "/events"}))
	}
	return effects, nil
}

func GetEvent(ctx context.Context, database *sqlx.DB, eventID string) (EventDetail, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return EventDetail{}, ErrNotFound("Event not found")
	}
	var detail EventDetail
	err := database.GetContext(ctx, &detail, `
SELECT e.id, e.title, e.description, e.category, e.starts_at, e.ends_at, e.location, e.is_online, e.capacity,
       e.status, e.approval_status, e.approval_note, e.created_by, e.approved_by, e.submitted_at, e.approved_at,
       e.published_at, e.completed_at, e.cancelled_at, e.created_at, e.updated_at,
       (SELECT count(*) FROM event_signups s WHERE s.event_id = e.id) AS signup_count,
       COALESCE(u.name, '') AS creator_name
FROM events e
LEFT JOIN users u ON u.id = e.created_by
WHERE e.id = $1
`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return EventDetail{}, ErrNotFound("Event not found")
	}
	return detail, err
}

// Visible reports whether the event can be shown to actor. Unpublished events
// are visible only to their owner and admins.
func (e EventDetail) Visible(actor *Actor) bool {
	if EventStatus(e.Status) == EventPublished || EventStatus(e.Status) == EventCompleted {
		return ApprovalStatus(e.ApprovalStatus) == ApprovalApproved || (actor != nil && canManageEvent(*actor, e.Event))
	}
	return actor != nil && canManageEvent(*actor, e.Event)
}

func (e EventDetail) ManagedBy(actor Actor) bool {
	return canManageEvent(actor, e.Event)
}

type EventFilter struct {
	Status       string
	Approval     string
	CreatedBy    string
	Category     string
	Search       string
	UpcomingOnly bool
	Limit        int
	Offset       int
}

func ListEvents(ctx context.Context, database *sqlx.DB, filter EventFilter) ([]EventDetail, int, error) {
	where := []string{}
	args := []interface{}{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("e.status = $%d", strings.ToUpper(filter.Status))
	}
	if filter.Approval != "" {
		add("e.approval_status = $%d", strings.ToUpper(filter.Approval))
	}
	if filter.CreatedBy != "" {
		add("e.created_by = $%d", filter.CreatedBy)
	}
	if filter.Category != "" {
		add("lower(e.category) = lower($%d)", filter.Category)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		add("(lower(e.title) LIKE $%[1]d OR lower(e.description) LIKE $%[1]d)", "%"+strings.ToLower(term)+"%")
	}
	if filter.UpcomingOnly {
		add("e.ends_at >= $%d", time.Now().UTC())
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := database.GetContext(ctx, &total, "SELECT count(*) FROM events e "+clause, args...); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
SELECT e.id, e.title, e.description, e.category, e.starts_at, e.ends_at, e.location, e.is_online, e.capacity,
       e.status, e.approval_status, e.approval_note, e.created_by, e.approved_by, e.submitted_at, e.approved_at,
       e.published_at, e.completed_at, e.cancelled_at, e.created_at, e.updated_at,
       (SELECT count(*) FROM event_signups s WHERE s.event_id = e.id) AS signup_count,
       COALESCE(u.name, '') AS creator_name
FROM events e
LEFT JOIN users u ON u.id = e.created_by
%s
ORDER BY e.starts_at ASC
LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	items := []EventDetail{}
	if err := database.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func getEvent(ctx context.Context, q sqlx.QueryerContext, eventID string) (models.Event, error) {
	var event models.Event
	err := sqlx.GetContext(ctx, q, &event, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound("Event not found")
	}
	return event, err
}

// lockEvent loads the event row with FOR UPDATE. Every capacity check and
// status transition goes through it, so concurrent signups, publishes and
// moderation decisions on one event are serialized.
func lockEvent(ctx context.Context, tx *sqlx.Tx, eventID string) (models.Event, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return models.Event{}, ErrNotFound("Event not found")
	}
	var event models.Event
	err := tx.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound("Event not found")
	}
	return event, err
}

func eventState(event models.Event) EventState {
	return EventState{
		Status:      EventStatus(event.Status),
		Approval:    ApprovalStatus(event.ApprovalStatus),
		ApprovedAt:  event.ApprovedAt,
		PublishedAt: event.PublishedAt,
		CompletedAt: event.CompletedAt,
		CancelledAt: event.CancelledAt,
	}
}

func canManageEvent(actor Actor, event models.Event) bool {
	if actor.IsAdmin() {
		return true
	}
	return event.CreatedBy != nil && *event.CreatedBy == actor.ID && actor.Has(RoleEventManager)
}

func formatWhen(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
