package services

import "time"

type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
	EventCompleted EventStatus = "COMPLETED"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type EventAction string

const (
	ActionPublish  EventAction = "PUBLISH"
	ActionCancel   EventAction = "CANCEL"
	ActionComplete EventAction = "COMPLETE"
	ActionApprove  EventAction = "APPROVE"
	ActionReject   EventAction = "REJECT"
)

// EventState is the part of an event both state machines act on.
type EventState struct {
	Status      EventStatus
	Approval    ApprovalStatus
	ApprovedAt  *time.Time
	PublishedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// TransitionEvent applies action to state. It is the only place the coupling
// between lifecycle and approval is encoded: a REJECTED approval forces DRAFT
// and clears published_at, an APPROVED one publishes non-terminal events and
// stamps published_at once. The bool result is false for idempotent no-ops.
func TransitionEvent(state EventState, action EventAction, now time.Time) (EventState, bool, error) {
	next := state
	switch action {
	case ActionPublish:
		switch state.Status {
		case EventPublished:
			return state, false, nil
		case EventCompleted:
			return state, false, ErrConflict("Completed events cannot be published")
		case EventCancelled:
			return state, false, ErrConflict("Cancelled events cannot be published")
		}
		if state.Approval != ApprovalApproved {
			return state, false, ErrBadRequest("Event must be approved before it can be published")
		}
		next.Status = EventPublished
		if next.PublishedAt == nil {
			next.PublishedAt = timePtr(now)
		}
	case ActionCancel:
		switch state.Status {
		case EventCancelled:
			return state, false, nil
		case EventCompleted:
			return state, false, ErrConflict("Completed events cannot be cancelled")
		}
		next.Status = EventCancelled
		next.CancelledAt = timePtr(now)
	case ActionComplete:
		switch state.Status {
		case EventCompleted:
			return state, false, nil
		case EventPublished:
		default:
			return state, false, ErrConflict("Only published events can be completed")
		}
		next.Status = EventCompleted
		next.CompletedAt = timePtr(now)
	case ActionApprove:
		next.Approval = ApprovalApproved
		next.ApprovedAt = timePtr(now)
		if state.Status == EventDraft || state.Status == EventPublished {
			next.Status = EventPublished
			if next.PublishedAt == nil {
				next.PublishedAt = timePtr(now)
			}
		}
	case ActionReject:
		next.Approval = ApprovalRejected
		next.ApprovedAt = nil
		next.Status = EventDraft
		next.PublishedAt = nil
	default:
		return state, false, ErrBadRequest("Unknown event action")
	}
	if err := checkEventState(next); err != nil {
		return state, false, err
	}
	return next, !sameEventState(state, next), nil
}

func checkEventState(state EventState) error {
	if state.Status == EventPublished && state.Approval != ApprovalApproved {
		return ErrConflict("Published events must be approved")
	}
	if state.Approval == ApprovalRejected && (state.Status != EventDraft || state.PublishedAt != nil) {
		return ErrConflict("Rejected events must be drafts")
	}
	return nil
}

func sameEventState(a, b EventState) bool {
	return a.Status == b.Status &&
		a.Approval == b.Approval &&
		sameTime(a.ApprovedAt, b.ApprovedAt) &&
		sameTime(a.PublishedAt, b.PublishedAt) &&
		sameTime(a.CompletedAt, b.CompletedAt) &&
		sameTime(a.CancelledAt, b.CancelledAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
