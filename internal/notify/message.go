package notify

import (
	"context"
	"time"
)

// CTA is the optional call-to-action button of an email.
type CTA struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Message is a templated email: a heading, a few body lines and an optional button.
type Message struct {
	To          string   `json:"to"`
	Subject     string   `json:"subject"`
	Heading     string   `json:"heading"`
	BodyLines   []string `json:"bodyLines"`
	CTA         *CTA     `json:"cta,omitempty"`
	PreviewText string   `json:"previewText,omitempty"`
}

// Activity is a domain event fanned out to the event stream and the admin feed.
type Activity struct {
	Type       string                 `json:"type"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	ActorID    string                 `json:"actorId,omitempty"`
	At         time.Time              `json:"at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Publisher interface {
	Publish(ctx context.Context, activity Activity) error
	Close() error
}
