package models

import (
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Email           string         `db:"email"`
	PasswordHash    string         `db:"password_hash"`
	Roles           pq.StringArray `db:"roles"`
	Role            string         `db:"role"`
	IsActive        bool           `db:"is_active"`
	EmailVerifiedAt *time.Time     `db:"email_verified_at"`
	LastLoginAt     *time.Time     `db:"last_login_at"`
	LastSeenAt      *time.Time     `db:"last_seen_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

type Event struct {
	ID             string     `db:"id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	Category       *string    `db:"category"`
	StartsAt       time.Time  `db:"starts_at"`
	EndsAt         time.Time  `db:"ends_at"`
	Location       *string    `db:"location"`
	IsOnline       bool       `db:"is_online"`
	Capacity       int        `db:"capacity"`
	Status         string     `db:"status"`
	ApprovalStatus string     `db:"approval_status"`
	ApprovalNote   *string    `db:"approval_note"`
	CreatedBy      *string    `db:"created_by"`
	ApprovedBy     *string    `db:"approved_by"`
	SubmittedAt    *time.Time `db:"submitted_at"`
	ApprovedAt     *time.Time `db:"approved_at"`
	PublishedAt    *time.Time `db:"published_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	CancelledAt    *time.Time `db:"cancelled_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

type EventSignup struct {
	ID             string     `db:"id"`
	EventID        string     `db:"event_id"`
	UserID         string     `db:"user_id"`
	Status         string     `db:"status"`
	ReminderSentAt *time.Time `db:"reminder_sent_at"`
	CreatedAt      time.Time  `db:"created_at"`
}

type EventTask struct {
	ID                 string    `db:"id"`
	EventID            string    `db:"event_id"`
	Title              string    `db:"title"`
	Description        *string   `db:"description"`
	RequiredVolunteers int       `db:"required_volunteers"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

type EventAssignment struct {
	ID          string     `db:"id"`
	EventID     string     `db:"event_id"`
	TaskID      string     `db:"task_id"`
	UserID      string     `db:"user_id"`
	Status      string     `db:"status"`
	AssignedAt  time.Time  `db:"assigned_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

type EventAttendance struct {
	ID           string     `db:"id"`
	EventID      string     `db:"event_id"`
	UserID       string     `db:"user_id"`
	CheckInAt    *time.Time `db:"check_in_at"`
	CheckOutAt   *time.Time `db:"check_out_at"`
	Minutes      *int       `db:"minutes"`
	HoursEntryID *string    `db:"hours_entry_id"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

type HoursEntry struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	EventID    *string   `db:"event_id"`
	Minutes    int       `db:"minutes"`
	Note       *string   `db:"note"`
	Source     string    `db:"source"`
	VerifiedBy *string   `db:"verified_by"`
	CreatedAt  time.Time `db:"created_at"`
}

type SponsorProfile struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	OrgName      string     `db:"org_name"`
	ContactName  *string    `db:"contact_name"`
	ContactEmail string     `db:"contact_email"`
	ContactPhone *string    `db:"contact_phone"`
	Website      *string    `db:"website"`
	LogoURL      *string    `db:"logo_url"`
	BrandColor   *string    `db:"brand_color"`
	Tagline      *string    `db:"tagline"`
	Status       string     `db:"status"`
	StatusNote   *string    `db:"status_note"`
	ApprovedAt   *time.Time `db:"approved_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

type Sponsorship struct {
	ID                string     `db:"id"`
	SponsorID         string     `db:"sponsor_id"`
	EventID           string     `db:"event_id"`
	Type              string     `db:"type"`
	Amount            *float64   `db:"amount"`
	InKindDescription *string    `db:"in_kind_description"`
	Note              *string    `db:"note"`
	Status            string     `db:"status"`
	DecisionNote      *string    `db:"decision_note"`
	ApprovedAt        *time.Time `db:"approved_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

type EventMedia struct {
	ID                    string         `db:"id"`
	EventID               string         `db:"event_id"`
	UploaderID            string         `db:"uploader_id"`
	URL                   string         `db:"url"`
	StorageKey            string         `db:"storage_key"`
	ThumbnailURL          *string        `db:"thumbnail_url"`
	ThumbnailKey          *string        `db:"thumbnail_key"`
	ContentType           string         `db:"content_type"`
	SizeBytes             int64          `db:"size_bytes"`
	Caption               *string        `db:"caption"`
	TaggedSponsorIDs      pq.StringArray `db:"tagged_sponsor_ids"`
	Status                string         `db:"status"`
	ModeratedAt           *time.Time     `db:"moderated_at"`
	ModeratedBy           *string        `db:"moderated_by"`
	ModerationNote        *string        `db:"moderation_note"`
	TimeToDecisionSeconds *int64         `db:"time_to_decision_seconds"`
	ViewCount             int64          `db:"view_count"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

type EventStory struct {
	ID                    string         `db:"id"`
	EventID               string         `db:"event_id"`
	AuthorID              string         `db:"author_id"`
	Title                 string         `db:"title"`
	Body                  string         `db:"body"`
	TaggedSponsorIDs      pq.StringArray `db:"tagged_sponsor_ids"`
	Status                string         `db:"status"`
	ModeratedAt           *time.Time     `db:"moderated_at"`
	ModeratedBy           *string        `db:"moderated_by"`
	ModerationNote        *string        `db:"moderation_note"`
	TimeToDecisionSeconds *int64         `db:"time_to_decision_seconds"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

type AuditLog struct {
	ID         string    `db:"id"`
	ActorID    *string   `db:"actor_id"`
	Action     string    `db:"action"`
	EntityType string    `db:"entity_type"`
	EntityID   string    `db:"entity_id"`
	Before     []byte    `db:"before"`
	After      []byte    `db:"after"`
	Note       *string   `db:"note"`
	CreatedAt  time.Time `db:"created_at"`
}
