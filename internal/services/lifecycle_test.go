package services

import (
	"testing"
	"time"
)

var lifecycleNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	serr, ok := AsServiceError(err)
	if !ok {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	return serr.Status
}

func TestPublishRequiresApproval(t *testing.T) {
	state := EventState{Status: EventDraft, Approval: ApprovalPending}
	_, _, err := TransitionEvent(state, ActionPublish, lifecycleNow)
	if statusOf(t, err) != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	published := lifecycleNow.Add(-time.Hour)
	state := EventState{Status: EventPublished, Approval: ApprovalApproved, PublishedAt: &published}
	next, changed, err := TransitionEvent(state, ActionPublish, lifecycleNow)
	if err != nil || changed {
		t.Fatalf("expected no-op, got changed=%v err=%v", changed, err)
	}
	if !next.PublishedAt.Equal(published) {
		t.Fatal("published_at must not move")
	}
}

func TestPublishCompletedConflicts(t *testing.T) {
	state := EventState{Status: EventCompleted, Approval: ApprovalApproved}
	_, _, err := TransitionEvent(state, ActionPublish, lifecycleNow)
	if statusOf(t, err) != 409 {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestApproveForcesPublished(t *testing.T) {
	state := EventState{Status: EventDraft, Approval: ApprovalPending}
	next, changed, err := TransitionEvent(state, ActionApprove, lifecycleNow)
	if err != nil || !changed {
		t.Fatalf("approve: changed=%v err=%v", changed, err)
	}
	if next.Status != EventPublished || next.Approval != ApprovalApproved {
		t.Fatalf("unexpected state %+v", next)
	}
	if next.PublishedAt == nil || !next.PublishedAt.Equal(lifecycleNow) {
		t.Fatal("published_at should be stamped")
	}
}

func TestApproveKeepsExistingPublishedAt(t *testing.T) {
	earlier := lifecycleNow.Add(-48 * time.Hour)
	state := EventState{Status: EventDraft, Approval: ApprovalPending, PublishedAt: &earlier}
	next, _, err := TransitionEvent(state, ActionApprove, lifecycleNow)
	if err != nil {
		t.Fatal(err)
	}
	if !next.PublishedAt.Equal(earlier) {
		t.Fatal("published_at is stamped only once")
	}
}

func TestApproveLeavesTerminalLifecycle(t *testing.T) {
	state := EventState{Status: EventCompleted, Approval: ApprovalPending}
	next, _, err := TransitionEvent(state, ActionApprove, lifecycleNow)
	if err != nil {
		t.Fatal(err)
	}
	if next.Status != EventCompleted {
		t.Fatalf("completed event should stay completed, got %s", next.Status)
	}
}

func TestRejectAfterPublish(t *testing.T) {
	published := lifecycleNow.Add(-time.Hour)
	approved := lifecycleNow.Add(-2 * time.Hour)
	state := EventState{Status: EventPublished, Approval: ApprovalApproved, PublishedAt: &published, ApprovedAt: &approved}
	next, changed, err := TransitionEvent(state, ActionReject, lifecycleNow)
	if err != nil || !changed {
		t.Fatalf("reject: changed=%v err=%v", changed, err)
	}
	if next.Status != EventDraft || next.Approval != ApprovalRejected || next.PublishedAt != nil {
		t.Fatalf("unexpected state %+v", next)
	}
}

func TestCancelAndComplete(t *testing.T) {
	draft := EventState{Status: EventDraft, Approval: ApprovalPending}
	cancelled, changed, err := TransitionEvent(draft, ActionCancel, lifecycleNow)
	if err != nil || !changed || cancelled.Status != EventCancelled {
		t.Fatalf("cancel draft: %+v %v %v", cancelled, changed, err)
	}
	if _, changed, err := TransitionEvent(cancelled, ActionCancel, lifecycleNow); err != nil || changed {
		t.Fatalf("second cancel should be a no-op: %v %v", changed, err)
	}
	if _, _, err := TransitionEvent(draft, ActionComplete, lifecycleNow); statusOf(t, err) != 409 {
		t.Fatalf("completing a draft should conflict: %v", err)
	}
	published := EventState{Status: EventPublished, Approval: ApprovalApproved, PublishedAt: timePtr(lifecycleNow)}
	done, _, err := TransitionEvent(published, ActionComplete, lifecycleNow)
	if err != nil || done.Status != EventCompleted || done.CompletedAt == nil {
		t.Fatalf("complete: %+v %v", done, err)
	}
	if _, _, err := TransitionEvent(done, ActionCancel, lifecycleNow); statusOf(t, err) != 409 {
		t.Fatalf("cancelling a completed event should conflict: %v", err)
	}
}

func TestPublishedNeverWithoutApproval(t *testing.T) {
	states := []EventState{
		{Status: EventDraft, Approval: ApprovalPending},
		{Status: EventDraft, Approval: ApprovalRejected},
		{Status: EventDraft, Approval: ApprovalApproved},
		{Status: EventPublished, Approval: ApprovalApproved, PublishedAt: timePtr(lifecycleNow)},
		{Status: EventCancelled, Approval: ApprovalPending},
		{Status: EventCompleted, Approval: ApprovalApproved},
	}
	actions := []EventAction{ActionPublish, ActionCancel, ActionComplete, ActionApprove, ActionReject}
	for _, state := range states {
		for _, action := range actions {
			next, _, err := TransitionEvent(state, action, lifecycleNow)
			if err != nil {
				continue
			}
			if next.Status == EventPublished && next.Approval != ApprovalApproved {
				t.Fatalf("%s from %+v produced unapproved published event", action, state)
			}
			if next.Approval == ApprovalRejected && (next.Status != EventDraft || next.PublishedAt != nil) {
				t.Fatalf("%s from %+v produced rejected non-draft", action, state)
			}
		}
	}
}
