package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"canopy-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const storyColumns = `id, event_id, author_id, title, body, tagged_sponsor_ids, status, moderated_at, moderated_by,
       moderation_note, time_to_decision_seconds, created_at, updated_at`

type StoryInput struct {
	EventID          string
	Title            string
	Body             string
	TaggedSponsorIDs []string
}

// CreateStory submits an impact story for moderation.
func CreateStory(ctx context.Context, database *sqlx.DB, actor Actor, input StoryInput) (models.EventStory, []Effect, error) {
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if title == "" || body == "" {
		return models.EventStory{}, nil, ErrBadRequest("Title and story are required")
	}
	event, err := requireParticipant(ctx, database, actor, input.EventID)
	if err != nil {
		return models.EventStory{}, nil, err
	}
	tagged, err := validateSponsorTags(ctx, database, input.TaggedSponsorIDs)
	if err != nil {
		return models.EventStory{}, nil, err
	}
	now := time.Now().UTC()
	var story models.EventStory
	err = database.GetContext(ctx, &story, `
INSERT INTO event_stories (id, event_id, author_id, title, body, tagged_sponsor_ids, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,'PENDING',$7,$7)
RETURNING `+storyColumns, uuid.NewString(), event.ID, actor.ID, title, body, pq.StringArray(tagged), now)
	if err != nil {
		return models.EventStory{}, nil, WrapError(err, "create story")
	}
	return story, []Effect{activityEffect("story.submitted", "STORY", story.ID, actor.ID, now,
		map[string]interface{}{"eventId": event.ID})}, nil
}

func GetStory(ctx context.Context, q sqlx.QueryerContext, storyID string) (models.EventStory, error) {
	if _, err := uuid.Parse(storyID); err != nil {
		return models.EventStory{}, ErrNotFound("Story not found")
	}
	var story models.EventStory
	err := sqlx.GetContext(ctx, q, &story, `SELECT `+storyColumns+` FROM event_stories WHERE id = $1`, storyID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventStory{}, ErrNotFound("Story not found")
	}
	return story, err
}

type StoryDetail struct {
	models.EventStory
	AuthorName string `db:"author_name"`
	EventTitle string `db:"event_title"`
}

// ListApprovedStories lists published stories, optionally for one event.
func ListApprovedStories(ctx context.Context, database *sqlx.DB, eventID string) ([]StoryDetail, error) {
	rows := []StoryDetail{}
	err := database.SelectContext(ctx, &rows, `
SELECT s.id, s.event_id, s.author_id, s.title, s.body, s.tagged_sponsor_ids, s.status, s.moderated_at, s.moderated_by,
       s.moderation_note, s.time_to_decision_seconds, s.created_at, s.updated_at,
       u.name AS author_name, e.title AS event_title
FROM event_stories s
JOIN users u ON u.id = s.author_id
JOIN events e ON e.id = s.event_id
WHERE s.status = 'APPROVED' AND ($1 = '' OR s.event_id::text = $1)
ORDER BY s.moderated_at DESC NULLS LAST
LIMIT 100
`, eventID)
	return rows, err
}

func ListMyStories(ctx context.Context, database *sqlx.DB, userID string) ([]models.EventStory, error) {
	rows := []models.EventStory{}
	err := database.SelectContext(ctx, &rows, `SELECT `+storyColumns+` FROM event_stories WHERE author_id = $1 ORDER BY created_at DESC`, userID)
	return rows, err
}

func DeleteStory(ctx context.Context, database *sqlx.DB, actor Actor, storyID string) error {
	story, err := GetStory(ctx, database, storyID)
	if err != nil {
		return err
	}
	if story.AuthorID != actor.ID && !actor.IsAdmin() {
		return ErrForbidden("You cannot delete this story")
	}
	_, err = database.ExecContext(ctx, `DELETE FROM event_stories WHERE id = $1`, storyID)
	return err
}
