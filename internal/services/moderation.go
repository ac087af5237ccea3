package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"canopy-backend-go/internal/db"
	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/notify"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ModerationKind string

const (
	KindEvent          ModerationKind = "EVENT"
	KindSponsorProfile ModerationKind = "SPONSOR_PROFILE"
	KindMedia          ModerationKind = "MEDIA"
	KindStory          ModerationKind = "STORY"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

func ParseModerationKind(raw string) (ModerationKind, error) {
	kind := ModerationKind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	switch kind {
	case KindEvent, KindSponsorProfile, KindMedia, KindStory:
		return kind, nil
	case "SPONSOR", "SPONSORS", "SPONSOR_PROFILES":
		return KindSponsorProfile, nil
	case "EVENTS":
		return KindEvent, nil
	case "STORIES":
		return KindStory, nil
	}
	return "", ErrBadRequest("Unknown moderation target")
}

// ParseDecision accepts verbs and the resulting statuses.
func ParseDecision(raw string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "APPROVE", "APPROVED":
		return DecisionApprove, nil
	case "REJECT", "REJECTED", "DECLINE", "DECLINED":
		return DecisionReject, nil
	}
	return "", ErrBadRequest("Decision must be approve or reject")
}

type ModerationResult struct {
	Kind     ModerationKind
	EntityID string
	Before   Snapshot
	After    Snapshot
}

// Moderate applies an admin approve/reject decision. The status change and its
// audit row commit together; notifications come back as effects.
func Moderate(ctx context.Context, database *sqlx.DB, actor Actor, kind ModerationKind, entityID string, decision Decision, note *string) (ModerationResult, []Effect, error) {
	if !actor.IsAdmin() {
		return ModerationResult{}, nil, ErrForbidden("Only admins can moderate")
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return ModerationResult{}, nil, ErrBadRequest("Decision must be approve or reject")
	}
	note = trimOptional(note)
	now := time.Now().UTC()
	switch kind {
	case KindEvent:
		return moderateEvent(ctx, database, actor, entityID, decision, note, now)
	case KindSponsorProfile:
		return moderateSponsorProfile(ctx, database, actor, entityID, decision, note, now)
	case KindMedia:
		return moderateMedia(ctx, database, actor, entityID, decision, note, now)
	case KindStory:
		return moderateStory(ctx, database, actor, entityID, decision, note, now)
	}
	return ModerationResult{}, nil, ErrBadRequest("Unknown moderation target")
}

func moderateEvent(ctx context.Context, database *sqlx.DB, actor Actor, eventID string, decision Decision, note *string, now time.Time) (ModerationResult, []Effect, error) {
	action := ActionApprove
	if decision == DecisionReject {
		action = ActionReject
	}
	var before, after EventSnapshot
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		owner, err := eventManager(ctx, tx, event)
		if err != nil {
			return err
		}
		before = eventSnapshot(event, owner)
		updated, _, err := applyEventAction(ctx, tx, event, action, actor.ID, note, now)
		if err != nil {
			return err
		}
		after = eventSnapshot(updated, owner)
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: actor.ID,
			Action:  "EVENT_" + string(approvalFor(decision)),
			Before:  before,
			After:   after,
			Note:    note,
		}, now)
	})
	if err != nil {
		return ModerationResult{}, nil, err
	}

	effects := []Effect{activityEffect("moderation.event", "EVENT", eventID, actor.ID, now,
		map[string]interface{}{"decision": string(decision), "status": after.Status})}
	lines := []string{"Hi " + after.OwnerName + ","}
	subject := "Your event was approved: " + after.Title
	cta := &notify.CTA{Label: "View event", URL: "/events/" + eventID}
	if decision == DecisionApprove {
		lines = append(lines, "\""+after.Title+"\" has been approved and is now visible to volunteers.")
	} else {
		subject = "Your event needs changes: " + after.Title
		lines = append(lines, "\""+after.Title+"\" was not approved. Update the event and our team will review it again.")
		cta = &notify.CTA{Label: "Edit event", URL: "/manage/events/" + eventID}
	}
	lines = appendNote(lines, note)
	effects = appendEffects(effects, emailEffect(after.OwnerEmail, subject, subject, lines, cta))
	return ModerationResult{Kind: KindEvent, EntityID: eventID, Before: before, After: after}, effects, nil
}

func moderateSponsorProfile(ctx context.Context, database *sqlx.DB, actor Actor, profileID string, decision Decision, note *string, now time.Time) (ModerationResult, []Effect, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return ModerationResult{}, nil, ErrNotFound("Sponsor profile not found")
	}
	status := SponsorApproved
	if decision == DecisionReject {
		status = SponsorDeclined
	}
	var before, after SponsorProfileSnapshot
	var cascaded int
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		var profile models.SponsorProfile
		err := tx.GetContext(ctx, &profile, `SELECT `+sponsorProfileColumns+` FROM sponsor_profiles WHERE id = $1 FOR UPDATE`, profileID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("Sponsor profile not found")
		}
		if err != nil {
			return err
		}
		before, err = sponsorProfileSnapshot(ctx, tx, profile)
		if err != nil {
			return err
		}
		cascaded, err = SetSponsorProfileStatus(ctx, tx, profileID, status, note, now)
		if err != nil {
			return err
		}
		updated, err := GetSponsorProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}
		after, err = sponsorProfileSnapshot(ctx, tx, updated)
		if err != nil {
			return err
		}
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: actor.ID,
			Action:  "SPONSOR_PROFILE_" + status,
			Before:  before,
			After:   after,
			Note:    note,
		}, now)
	})
	if err != nil {
		return ModerationResult{}, nil, err
	}

	effects := []Effect{activityEffect("moderation.sponsor_profile", "SPONSOR_PROFILE", profileID, actor.ID, now,
		map[string]interface{}{"decision": string(decision), "sponsorshipsCascaded": cascaded})}
	subject := "Your sponsor profile was approved"
	lines := []string{"Welcome aboard, " + after.OrgName + "! Your pending pledges can now be reviewed."}
	if status == SponsorDeclined {
		subject = "Your sponsor application was declined"
		lines = []string{"We're unable to approve " + after.OrgName + " as a sponsor at this time."}
	}
	lines = appendNote(lines, note)
	effects = appendEffects(effects, emailEffect(after.ContactEmail, subject, subject, lines,
		&notify.CTA{Label: "View sponsor dashboard", URL: "/sponsor"}))
	return ModerationResult{Kind: KindSponsorProfile, EntityID: profileID, Before: before, After: after}, effects, nil
}

func moderateMedia(ctx context.Context, database *sqlx.DB, actor Actor, mediaID string, decision Decision, note *string, now time.Time) (ModerationResult, []Effect, error) {
	status := string(contentStatusFor(decision))
	var before, after MediaSnapshot
	var sponsorEmails []string
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		media, err := GetMedia(ctx, tx, mediaID)
		if err != nil {
			return err
		}
		before, err = mediaSnapshot(ctx, tx, media)
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &media, `
UPDATE event_media
SET status = $2,
    moderated_by = $3,
    moderation_note = $4,
    moderated_at = COALESCE(moderated_at, $5),
    time_to_decision_seconds = COALESCE(time_to_decision_seconds, GREATEST(0, EXTRACT(EPOCH FROM ($5 - created_at)))::bigint),
    updated_at = $5
WHERE id = $1
RETURNING `+mediaColumns, mediaID, status, actor.ID, note, now); err != nil {
			return err
		}
		after, err = mediaSnapshot(ctx, tx, media)
		if err != nil {
			return err
		}
		if status == ContentApproved {
			sponsorEmails, err = sponsorContacts(ctx, tx, media.TaggedSponsorIDs)
			if err != nil {
				return err
			}
		}
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: actor.ID,
			Action:  "MEDIA_" + status,
			Before:  before,
			After:   after,
			Note:    note,
		}, now)
	})
	if err != nil {
		return ModerationResult{}, nil, err
	}

	effects := []Effect{activityEffect("moderation.media", "MEDIA", mediaID, actor.ID, now,
		map[string]interface{}{"decision": string(decision), "eventId": after.EventID})}
	subject := "Your photo was approved"
	lines := []string{"Your upload for \"" + after.EventTitle + "\" is now live in the event gallery."}
	if status == ContentRejected {
		subject = "Your photo was not approved"
		lines = []string{"Your upload for \"" + after.EventTitle + "\" was not approved for the gallery."}
	}
	lines = appendNote(lines, note)
	cta := &notify.CTA{Label: "View gallery", URL: "/events/" + after.EventID + "/gallery"}
	effects = appendEffects(effects, emailEffect(after.OwnerEmail, subject, subject, lines, cta))
	for _, email := range sponsorEmails {
		effects = appendEffects(effects, emailEffect(email,
			"You were featured in "+after.EventTitle,
			"Your brand is in the gallery",
			[]string{"A photo from \"" + after.EventTitle + "\" tagging your organization was just published."},
			cta))
	}
	return ModerationResult{Kind: KindMedia, EntityID: mediaID, Before: before, After: after}, effects, nil
}

func moderateStory(ctx context.Context, database *sqlx.DB, actor Actor, storyID string, decision Decision, note *string, now time.Time) (ModerationResult, []Effect, error) {
	status := string(contentStatusFor(decision))
	var before, after StorySnapshot
	var sponsorEmails []string
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		story, err := GetStory(ctx, tx, storyID)
		if err != nil {
			return err
		}
		before, err = storySnapshot(ctx, tx, story)
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &story, `
UPDATE event_stories
SET status = $2,
    moderated_by = $3,
    moderation_note = $4,
    moderated_at = COALESCE(moderated_at, $5),
    time_to_decision_seconds = COALESCE(time_to_decision_seconds, GREATEST(0, EXTRACT(EPOCH FROM ($5 - created_at)))::bigint),
    updated_at = $5
WHERE id = $1
RETURNING `+storyColumns, storyID, status, actor.ID, note, now); err != nil {
			return err
		}
		after, err = storySnapshot(ctx, tx, story)
		if err != nil {
			return err
		}
		if status == ContentApproved {
			sponsorEmails, err = sponsorContacts(ctx, tx, story.TaggedSponsorIDs)
			if err != nil {
				return err
			}
		}
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: actor.ID,
			Action:  "STORY_" + status,
			Before:  before,
			After:   after,
			Note:    note,
		}, now)
	})
	if err != nil {
		return ModerationResult{}, nil, err
	}

	effects := []Effect{activityEffect("moderation.story", "STORY", storyID, actor.ID, now,
		map[string]interface{}{"decision": string(decision), "eventId": after.EventID})}
	subject := "Your story was published"
	lines := []string{"\"" + after.Title + "\" is now live for everyone to read. Thank you for sharing it."}
	if status == ContentRejected {
		subject = "Your story was not published"
		lines = []string{"\"" + after.Title + "\" was not approved for publication."}
	}
	lines = appendNote(lines, note)
	cta := &notify.CTA{Label: "Read stories", URL: "/stories"}
	effects = appendEffects(effects, emailEffect(after.OwnerEmail, subject, subject, lines, cta))
	for _, email := range sponsorEmails {
		effects = appendEffects(effects, emailEffect(email,
			"You were mentioned in a story from "+after.EventTitle,
			"A volunteer story mentions you",
			[]string{"\"" + after.Title + "\" from \"" + after.EventTitle + "\" tags your organization."},
			cta))
	}
	return ModerationResult{Kind: KindStory, EntityID: storyID, Before: before, After: after}, effects, nil
}

type ModerationQueue struct {
	Events          []EventDetail
	SponsorProfiles []models.SponsorProfile
	Media           []models.EventMedia
	Stories         []models.EventStory
}

// PendingModeration lists everything waiting for an admin decision, oldest first.
func PendingModeration(ctx context.Context, database *sqlx.DB) (ModerationQueue, error) {
	var queue ModerationQueue
	events, _, err := ListEvents(ctx, database, EventFilter{Approval: string(ApprovalPending), Limit: 100})
	if err != nil {
		return queue, err
	}
	queue.Events = events
	if queue.SponsorProfiles, err = ListSponsorProfiles(ctx, database, SponsorPending); err != nil {
		return queue, err
	}
	queue.Media = []models.EventMedia{}
	if err := database.SelectContext(ctx, &queue.Media, `SELECT `+mediaColumns+` FROM event_media WHERE status = 'PENDING' ORDER BY created_at ASC`); err != nil {
		return queue, err
	}
	queue.Stories = []models.EventStory{}
	if err := database.SelectContext(ctx, &queue.Stories, `SELECT `+storyColumns+` FROM event_stories WHERE status = 'PENDING' ORDER BY created_at ASC`); err != nil {
		return queue, err
	}
	return queue, nil
}

func eventSnapshot(event models.Event, owner *models.User) EventSnapshot {
	snap := EventSnapshot{
		ID:             event.ID,
		Title:          event.Title,
		Status:         event.Status,
		ApprovalStatus: event.ApprovalStatus,
		ApprovalNote:   event.ApprovalNote,
		CreatedBy:      event.CreatedBy,
		ApprovedAt:     event.ApprovedAt,
		PublishedAt:    event.PublishedAt,
	}
	if owner != nil {
		snap.OwnerEmail = owner.Email
		snap.OwnerName = owner.Name
	}
	return snap
}

func sponsorProfileSnapshot(ctx context.Context, q sqlx.QueryerContext, profile models.SponsorProfile) (SponsorProfileSnapshot, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, `SELECT count(*) FROM sponsorships WHERE sponsor_id = $1`, profile.ID); err != nil {
		return SponsorProfileSnapshot{}, err
	}
	return SponsorProfileSnapshot{
		ID:           profile.ID,
		UserID:       profile.UserID,
		OrgName:      profile.OrgName,
		ContactEmail: profile.ContactEmail,
		Status:       profile.Status,
		StatusNote:   profile.StatusNote,
		ApprovedAt:   profile.ApprovedAt,
		Sponsorships: count,
	}, nil
}

type contentOwner struct {
	EventTitle string `db:"event_title"`
	OwnerEmail string `db:"owner_email"`
}

func loadContentOwner(ctx context.Context, q sqlx.QueryerContext, eventID, userID string) (contentOwner, error) {
	var owner contentOwner
	err := sqlx.GetContext(ctx, q, &owner, `
SELECT e.title AS event_title, COALESCE(u.email, '') AS owner_email
FROM events e
LEFT JOIN users u ON u.id = $2
WHERE e.id = $1
`, eventID, userID)
	return owner, err
}

func mediaSnapshot(ctx context.Context, q sqlx.QueryerContext, media models.EventMedia) (MediaSnapshot, error) {
	owner, err := loadContentOwner(ctx, q, media.EventID, media.UploaderID)
	if err != nil {
		return MediaSnapshot{}, err
	}
	return MediaSnapshot{
		ID:                    media.ID,
		EventID:               media.EventID,
		EventTitle:            owner.EventTitle,
		UploaderID:            media.UploaderID,
		URL:                   media.URL,
		StorageKey:            media.StorageKey,
		Status:                media.Status,
		TaggedSponsorIDs:      append([]string{}, media.TaggedSponsorIDs...),
		ModeratedAt:           media.ModeratedAt,
		TimeToDecisionSeconds: media.TimeToDecisionSeconds,
		OwnerEmail:            owner.OwnerEmail,
	}, nil
}

func storySnapshot(ctx context.Context, q sqlx.QueryerContext, story models.EventStory) (StorySnapshot, error) {
	owner, err := loadContentOwner(ctx, q, story.EventID, story.AuthorID)
	if err != nil {
		return StorySnapshot{}, err
	}
	return StorySnapshot{
		ID:                    story.ID,
		EventID:               story.EventID,
		EventTitle:            owner.EventTitle,
		AuthorID:              story.AuthorID,
		Title:                 story.Title,
		Status:                story.Status,
		TaggedSponsorIDs:      append([]string{}, story.TaggedSponsorIDs...),
		ModeratedAt:           story.ModeratedAt,
		TimeToDecisionSeconds: story.TimeToDecisionSeconds,
		OwnerEmail:            owner.OwnerEmail,
	}, nil
}

func approvalFor(decision Decision) ApprovalStatus {
	if decision == DecisionApprove {
		return ApprovalApproved
	}
	return ApprovalRejected
}

func contentStatusFor(decision Decision) string {
	if decision == DecisionApprove {
		return ContentApproved
	}
	return ContentRejected
}

func appendNote(lines []string, note *string) []string {
	if note == nil {
		return lines
	}
	return append(lines, "Note from the team: "+*note)
}
