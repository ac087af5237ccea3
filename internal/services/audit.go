package services

import (
	"context"
	"encoding/json"
	"time"

	"canopy-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Snapshot is the typed state of one entity captured around an admin action.
type Snapshot interface {
	EntityType() string
	EntityID() string
}

type EventSnapshot struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	ApprovalStatus string     `json:"approvalStatus"`
	ApprovalNote   *string    `json:"approvalNote,omitempty"`
	CreatedBy      *string    `json:"createdBy,omitempty"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
	OwnerEmail     string     `json:"-"`
	OwnerName      string     `json:"-"`
}

func (s EventSnapshot) EntityType() string { return "EVENT" }
func (s EventSnapshot) EntityID() string   { return s.ID }

type SponsorProfileSnapshot struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	OrgName      string     `json:"orgName"`
	ContactEmail string     `json:"contactEmail"`
	Status       string     `json:"status"`
	StatusNote   *string    `json:"statusNote,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	Sponsorships int        `json:"sponsorships"`
}

func (s SponsorProfileSnapshot) EntityType() string { return "SPONSOR_PROFILE" }
func (s SponsorProfileSnapshot) EntityID() string   { return s.ID }

type SponsorshipSnapshot struct {
	ID         string     `json:"id"`
	SponsorID  string     `json:"sponsorId"`
	EventID    string     `json:"eventId"`
	Type       string     `json:"type"`
	Amount     *float64   `json:"amount,omitempty"`
	Status     string     `json:"status"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

func (s SponsorshipSnapshot) EntityType() string { return "SPONSORSHIP" }
func (s SponsorshipSnapshot) EntityID() string   { return s.ID }

type MediaSnapshot struct {
	ID                    string     `json:"id"`
	EventID               string     `json:"eventId"`
	EventTitle            string     `json:"eventTitle"`
	UploaderID            string     `json:"uploaderId"`
	URL                   string     `json:"url"`
	StorageKey            string     `json:"storageKey"`
	Status                string     `json:"status"`
	TaggedSponsorIDs      []string   `json:"taggedSponsorIds"`
	ModeratedAt           *time.Time `json:"moderatedAt,omitempty"`
	TimeToDecisionSeconds *int64     `json:"timeToDecisionSeconds,omitempty"`
	OwnerEmail            string     `json:"-"`
}

func (s MediaSnapshot) EntityType() string { return "MEDIA" }
func (s MediaSnapshot) EntityID() string   { return s.ID }

type StorySnapshot struct {
	ID                    string     `json:"id"`
	EventID               string     `json:"eventId"`
	EventTitle            string     `json:"eventTitle"`
	AuthorID              string     `json:"authorId"`
	Title                 string     `json:"title"`
	Status                string     `json:"status"`
	TaggedSponsorIDs      []string   `json:"taggedSponsorIds"`
	ModeratedAt           *time.Time `json:"moderatedAt,omitempty"`
	TimeToDecisionSeconds *int64     `json:"timeToDecisionSeconds,omitempty"`
	OwnerEmail            string     `json:"-"`
}

func (s StorySnapshot) EntityType() string { return "STORY" }
func (s StorySnapshot) EntityID() string   { return s.ID }

type UserSnapshot struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	Role     string   `json:"role"`
	IsActive bool     `json:"isActive"`
}

func (s UserSnapshot) EntityType() string { return "USER" }
func (s UserSnapshot) EntityID() string   { return s.ID }

type AuditEntry struct {
	ActorID string
	Action  string
	Before  Snapshot
	After   Snapshot
	Note    *string
}

func marshalSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// WriteAudit appends one audit row. It runs on the caller's transaction so the
// row commits or rolls back with the action it records.
func WriteAudit(ctx context.Context, tx sqlx.ExtContext, entry AuditEntry, now time.Time) error {
	subject := entry.After
	if subject == nil {
		subject = entry.Before
	}
	if subject == nil {
		return ErrBadRequest("Audit entry needs a snapshot")
	}
	before, err := marshalSnapshot(entry.Before)
	if err != nil {
		return err
	}
	after, err := marshalSnapshot(entry.After)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, before, after, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, uuid.NewString(), nullIfEmpty(entry.ActorID), entry.Action, subject.EntityType(), subject.EntityID(),
		nullJSON(before), nullJSON(after), entry.Note, now)
	return err
}

type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Limit      int
}

func ListAuditLogs(ctx context.Context, db *sqlx.DB, filter AuditFilter) ([]models.AuditLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows := []models.AuditLog{}
	err := db.SelectContext(ctx, &rows, `
SELECT id, actor_id, action, entity_type, entity_id, before, after, note, created_at
FROM audit_logs
WHERE ($1 = '' OR entity_type = $1)
  AND ($2 = '' OR entity_id = $2)
  AND ($3 = '' OR actor_id::text = $3)
ORDER BY created_at DESC
LIMIT $4
`, filter.EntityType, filter.EntityID, filter.ActorID, limit)
	return rows, err
}

func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
