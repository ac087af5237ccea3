package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"canopy-backend-go/internal/db"
	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/notify"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	SponsorPending  = "PENDING"
	SponsorApproved = "APPROVED"
	SponsorDeclined = "DECLINED"

	SponsorshipFunds  = "FUNDS"
	SponsorshipInKind = "IN_KIND"
)

const sponsorProfileColumns = `id, user_id, org_name, contact_name, contact_email, contact_phone, website, logo_url,
       brand_color, tagline, status, status_note, approved_at, created_at, updated_at`

const sponsorshipColumns = `id, sponsor_id, event_id, type, amount, in_kind_description, note, status,
       decision_note, approved_at, created_at, updated_at`

type SponsorProfileInput struct {
	OrgName      string
	ContactName  *string
	ContactEmail string
	ContactPhone *string
	Website      *string
	LogoURL      *string
	BrandColor   *string
	Tagline      *string
}

// ApplySponsor creates or replaces the caller's sponsor profile. Every
// application, first or repeated, leaves the profile PENDING and grants the
// SPONSOR role.
func ApplySponsor(ctx context.Context, database *sqlx.DB, actor Actor, input SponsorProfileInput) (models.SponsorProfile, []Effect, error) {
	orgName := strings.TrimSpace(input.OrgName)
	contactEmail := normalizeEmail(input.ContactEmail)
	if contactEmail == "" {
		contactEmail = normalizeEmail(actor.Email)
	}
	if orgName == "" || contactEmail == "" {
		return models.SponsorProfile{}, nil, ErrBadRequest("Organization name and contact email are required")
	}
	now := time.Now().UTC()
	var profile models.SponsorProfile
	var reset int
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		var previous string
		err := tx.GetContext(ctx, &previous, `SELECT status FROM sponsor_profiles WHERE user_id = $1 FOR UPDATE`, actor.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := tx.GetContext(ctx, &profile, `
INSERT INTO sponsor_profiles (id, user_id, org_name, contact_name, contact_email, contact_phone, website, logo_url,
                              brand_color, tagline, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'PENDING',$11,$11)
ON CONFLICT (user_id) DO UPDATE
SET org_name = EXCLUDED.org_name, contact_name = EXCLUDED.contact_name, contact_email = EXCLUDED.contact_email,
    contact_phone = EXCLUDED.contact_phone, website = EXCLUDED.website, logo_url = EXCLUDED.logo_url,
    brand_color = EXCLUDED.brand_color, tagline = EXCLUDED.tagline,
    status = 'PENDING', status_note = NULL, approved_at = NULL, updated_at = EXCLUDED.updated_at
RETURNING `+sponsorProfileColumns,
			uuid.NewString(), actor.ID, orgName, trimOptional(input.ContactName), contactEmail, trimOptional(input.ContactPhone),
			trimOptional(input.Website), trimOptional(input.LogoURL), trimOptional(input.BrandColor), trimOptional(input.Tagline), now); err != nil {
			return err
		}
		if previous != "" && previous != SponsorPending {
			reset, err = cascadeSponsorships(ctx, tx, profile.ID, SponsorPending)
			if err != nil {
				return err
			}
		}
		return grantRole(ctx, tx, actor.ID, RoleSponsor, now)
	})
	if err != nil {
		return models.SponsorProfile{}, nil, err
	}
	effects := appendEffects(nil,
		activityEffect("sponsor.applied", "SPONSOR_PROFILE", profile.ID, actor.ID, now,
			map[string]interface{}{"orgName": profile.OrgName, "sponsorshipsReset": reset}),
		emailEffect(profile.ContactEmail,
			"We received your sponsor application",
			"Thanks for applying",
			[]string{
				"Your application for " + profile.OrgName + " is now pending review.",
				"You can already pledge support to events; pledges are reviewed once your profile is approved.",
			},
			&notify.CTA{Label: "View sponsor dashboard", URL: "/sponsor"}),
	)
	return profile, effects, nil
}

func GetSponsorProfileByUser(ctx context.Context, q sqlx.QueryerContext, userID string) (models.SponsorProfile, error) {
	var profile models.SponsorProfile
	err := sqlx.GetContext(ctx, q, &profile, `SELECT `+sponsorProfileColumns+` FROM sponsor_profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SponsorProfile{}, ErrNotFound("Sponsor profile not found")
	}
	return profile, err
}

func GetSponsorProfile(ctx context.Context, q sqlx.QueryerContext, profileID string) (models.SponsorProfile, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return models.SponsorProfile{}, ErrNotFound("Sponsor profile not found")
	}
	var profile models.SponsorProfile
	err := sqlx.GetContext(ctx, q, &profile, `SELECT `+sponsorProfileColumns+` FROM sponsor_profiles WHERE id = $1`, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SponsorProfile{}, ErrNotFound("Sponsor profile not found")
	}
	return profile, err
}

func ListSponsorProfiles(ctx context.Context, database *sqlx.DB, status string) ([]models.SponsorProfile, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	profiles := []models.SponsorProfile{}
	err := database.SelectContext(ctx, &profiles, `
SELECT `+sponsorProfileColumns+`
FROM sponsor_profiles
WHERE ($1 = '' OR status = $1)
ORDER BY created_at ASC
`, status)
	return profiles, err
}

// SetSponsorProfileStatus moves a profile to status inside tx. A move to any
// non-approved status forces every sponsorship of the profile to the same
// status. It returns the number of sponsorships changed by the cascade.
func SetSponsorProfileStatus(ctx context.Context, tx *sqlx.Tx, profileID, status string, note *string, now time.Time) (int, error) {
	switch status {
	case SponsorPending, SponsorApproved, SponsorDeclined:
	default:
		return 0, ErrBadRequest("Invalid sponsor status")
	}
	res, err := tx.ExecContext(ctx, `
UPDATE sponsor_profiles
SET status = $2,
    status_note = $3,
    approved_at = CASE WHEN $2 = 'APPROVED' THEN COALESCE(approved_at, $4) ELSE NULL END,
    updated_at = $4
WHERE id = $1
`, profileID, status, note, now)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound("Sponsor profile not found")
	}
	if status == SponsorApproved {
		return 0, nil
	}
	return cascadeSponsorships(ctx, tx, profileID, status)
}

func cascadeSponsorships(ctx context.Context, tx *sqlx.Tx, profileID, status string) (int, error) {
	res, err := tx.ExecContext(ctx, `
UPDATE sponsorships
SET status = $2, approved_at = NULL, updated_at = $3
WHERE sponsor_id = $1 AND status <> $2
`, profileID, status, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type PledgeInput struct {
	EventID           string
	Type              string
	Amount            *float64
	InKindDescription *string
	Note              *string
}

// validatePledge normalizes the sponsorship type and amount. FUNDS needs a
// positive amount; IN_KIND may omit it. Amounts are rounded to cents.
func validatePledge(input PledgeInput) (string, *float64, error) {
	kind := strings.ToUpper(strings.TrimSpace(input.Type))
	if kind != SponsorshipFunds && kind != SponsorshipInKind {
		return "", nil, ErrBadRequest("Sponsorship type must be FUNDS or IN_KIND")
	}
	if input.Amount == nil {
		if kind == SponsorshipFunds {
			return "", nil, ErrBadRequest("Amount is required for funds")
		}
		return kind, nil, nil
	}
	amount := *input.Amount
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return "", nil, ErrBadRequest("Amount must be greater than zero")
	}
	amount = round2(amount)
	if amount <= 0 {
		return "", nil, ErrBadRequest("Amount must be greater than zero")
	}
	return kind, &amount, nil
}

// Pledge records a sponsorship for a published or completed event. New
// sponsorships always start PENDING.
func Pledge(ctx context.Context, database *sqlx.DB, actor Actor, input PledgeInput) (models.Sponsorship, []Effect, error) {
	kind, amount, err := validatePledge(input)
	if err != nil {
		return models.Sponsorship{}, nil, err
	}
	profile, err := GetSponsorProfileByUser(ctx, database, actor.ID)
	if err != nil {
		if svcErr, ok := AsServiceError(err); ok && svcErr.Status == 404 {
			return models.Sponsorship{}, nil, ErrBadRequest("Apply as a sponsor before pledging")
		}
		return models.Sponsorship{}, nil, err
	}
	if _, err := uuid.Parse(input.EventID); err != nil {
		return models.Sponsorship{}, nil, ErrNotFound("Event not found")
	}
	event, err := getEvent(ctx, database, input.EventID)
	if err != nil {
		return models.Sponsorship{}, nil, err
	}
	if EventStatus(event.Status) != EventPublished && EventStatus(event.Status) != EventCompleted {
		return models.Sponsorship{}, nil, ErrBadRequest("Only published or completed events can be sponsored")
	}
	now := time.Now().UTC()
	var sponsorship models.Sponsorship
	err = database.GetContext(ctx, &sponsorship, `
INSERT INTO sponsorships (id, sponsor_id, event_id, type, amount, in_kind_description, note, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,'PENDING',$8,$8)
RETURNING `+sponsorshipColumns,
		uuid.NewString(), profile.ID, event.ID, kind, amount, trimOptional(input.InKindDescription), trimOptional(input.Note), now)
	if err != nil {
		return models.Sponsorship{}, nil, WrapError(err, "create sponsorship")
	}
	effects := []Effect{activityEffect("sponsorship.pledged", "SPONSORSHIP", sponsorship.ID, actor.ID, now,
		map[string]interface{}{"eventId": event.ID, "type": kind, "amount": amount})}
	if manager, err := eventManager(ctx, database, event); err == nil && manager != nil {
		effects = appendEffects(effects, emailEffect(manager.Email,
			"New sponsorship pledge for "+event.Title,
			"A sponsor pledged support",
			[]string{
				profile.OrgName + " pledged " + describePledge(kind, amount, sponsorship.InKindDescription) + " to \"" + event.Title + "\".",
				"The pledge is pending admin review.",
			},
			nil))
	}
	return sponsorship, effects, nil
}

// UpdateSponsorshipApproval decides a PENDING sponsorship. Repeating the
// current decision is a no-op; any other change from a decided state is a
// conflict.
func UpdateSponsorshipApproval(ctx context.Context, database *sqlx.DB, actor Actor, sponsorshipID, status string, note *string) (models.Sponsorship, []Effect, error) {
	if !actor.IsAdmin() {
		return models.Sponsorship{}, nil, ErrForbidden("Only admins can decide sponsorships")
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != SponsorApproved && status != SponsorDeclined {
		return models.Sponsorship{}, nil, ErrBadRequest("Status must be APPROVED or DECLINED")
	}
	if _, err := uuid.Parse(sponsorshipID); err != nil {
		return models.Sponsorship{}, nil, ErrNotFound("Sponsorship not found")
	}
	now := time.Now().UTC()
	note = trimOptional(note)
	var after models.Sponsorship
	var profile models.SponsorProfile
	var event models.Event
	changed := false
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		var before models.Sponsorship
		err := tx.GetContext(ctx, &before, `SELECT `+sponsorshipColumns+` FROM sponsorships WHERE id = $1 FOR UPDATE`, sponsorshipID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("Sponsorship not found")
		}
		if err != nil {
			return err
		}
		after = before
		if before.Status == status {
			return nil
		}
		if before.Status != SponsorPending {
			return ErrConflict(fmt.Sprintf("Sponsorship was already %s", strings.ToLower(before.Status)))
		}
		profile, err = GetSponsorProfile(ctx, tx, before.SponsorID)
		if err != nil {
			return err
		}
		if status == SponsorApproved && profile.Status != SponsorApproved {
			return ErrBadRequest("Sponsor profile must be approved first")
		}
		event, err = getEvent(ctx, tx, before.EventID)
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &after, `
UPDATE sponsorships
SET status = $2, decision_note = $3,
    approved_at = CASE WHEN $2 = 'APPROVED' THEN $4::timestamptz ELSE NULL END,
    updated_at = $4
WHERE id = $1
RETURNING `+sponsorshipColumns, sponsorshipID, status, note, now); err != nil {
			return err
		}
		changed = true
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: actor.ID,
			Action:  "SPONSORSHIP_" + status,
			Before:  sponsorshipSnapshot(before),
			After:   sponsorshipSnapshot(after),
			Note:    note,
		}, now)
	})
	if err != nil || !changed {
		return after, nil, err
	}
	heading := "Your sponsorship was approved"
	lines := []string{"Your pledge of " + describePledge(after.Type, after.Amount, after.InKindDescription) + " to \"" + event.Title + "\" has been approved. Thank you!"}
	if status == SponsorDeclined {
		heading = "Your sponsorship was declined"
		lines = []string{"Your pledge to \"" + event.Title + "\" was not accepted."}
	}
	if note != nil {
		lines = append(lines, "Note from the team: "+*note)
	}
	effects := appendEffects(nil,
		activityEffect("sponsorship."+strings.ToLower(status), "SPONSORSHIP", after.ID, actor.ID, now, map[string]interface{}{"eventId": after.EventID}),
		emailEffect(profile.ContactEmail, heading, heading, lines, &notify.CTA{Label: "View sponsorships", URL: "/sponsor"}),
	)
	return after, effects, nil
}

type SponsorshipFilter struct {
	SponsorID string
	EventID   string
	Status    string
}

type SponsorshipDetail struct {
	models.Sponsorship
	OrgName    string `db:"org_name"`
	EventTitle string `db:"event_title"`
}

func ListSponsorships(ctx context.Context, database *sqlx.DB, filter SponsorshipFilter) ([]SponsorshipDetail, error) {
	rows := []SponsorshipDetail{}
	err := database.SelectContext(ctx, &rows, `
SELECT s.id, s.sponsor_id, s.event_id, s.type, s.amount, s.in_kind_description, s.note, s.status,
       s.decision_note, s.approved_at, s.created_at, s.updated_at,
       p.org_name, e.title AS event_title
FROM sponsorships s
JOIN sponsor_profiles p ON p.id = s.sponsor_id
JOIN events e ON e.id = s.event_id
WHERE ($1 = '' OR s.sponsor_id::text = $1)
  AND ($2 = '' OR s.event_id::text = $2)
  AND ($3 = '' OR s.status = $3)
ORDER BY s.created_at DESC
`, filter.SponsorID, filter.EventID, strings.ToUpper(filter.Status))
	return rows, err
}

type SponsorReportRow struct {
	SponsorshipDetail
	TotalHours   float64 `json:"totalHours"`
	GalleryViews int64   `json:"galleryViews"`
	ROI          ROI     `json:"roi"`
}

type SponsorReport struct {
	Profile       models.SponsorProfile
	Rows          []SponsorReportRow
	ApprovedFunds float64
	TotalHours    float64
	TotalViews    int64
}

// BuildSponsorReport computes per-sponsorship ROI for the sponsor owned by userID.
func BuildSponsorReport(ctx context.Context, database *sqlx.DB, userID string) (SponsorReport, error) {
	profile, err := GetSponsorProfileByUser(ctx, database, userID)
	if err != nil {
		return SponsorReport{}, err
	}
	sponsorships, err := ListSponsorships(ctx, database, SponsorshipFilter{SponsorID: profile.ID})
	if err != nil {
		return SponsorReport{}, err
	}
	type eventTotals struct {
		EventID string `db:"event_id"`
		Minutes int64  `db:"minutes"`
		Views   int64  `db:"views"`
	}
	totals := []eventTotals{}
	if err := database.SelectContext(ctx, &totals, `
SELECT e.id AS event_id,
       COALESCE((SELECT sum(h.minutes) FROM volunteer_hours h WHERE h.event_id = e.id), 0)::bigint AS minutes,
       COALESCE((SELECT sum(m.view_count) FROM event_media m WHERE m.event_id = e.id AND m.status = 'APPROVED'), 0)::bigint AS views
FROM events e
WHERE e.id IN (SELECT event_id FROM sponsorships WHERE sponsor_id = $1)
`, profile.ID); err != nil {
		return SponsorReport{}, err
	}
	byEvent := map[string]eventTotals{}
	for _, t := range totals {
		byEvent[t.EventID] = t
	}

	report := SponsorReport{Profile: profile, Rows: make([]SponsorReportRow, 0, len(sponsorships))}
	counted := map[string]bool{}
	for _, s := range sponsorships {
		t := byEvent[s.EventID]
		hours := round2(float64(t.Minutes) / 60)
		row := SponsorReportRow{
			SponsorshipDetail: s,
			TotalHours:        hours,
			GalleryViews:      t.Views,
			ROI:               ComputeROI(s.Amount, hours, t.Views),
		}
		report.Rows = append(report.Rows, row)
		if s.Status == SponsorApproved && s.Amount != nil {
			report.ApprovedFunds = round2(report.ApprovedFunds + *s.Amount)
		}
		if !counted[s.EventID] {
			counted[s.EventID] = true
			report.TotalHours = round2(report.TotalHours + hours)
			report.TotalViews += t.Views
		}
	}
	return report, nil
}

func sponsorshipSnapshot(s models.Sponsorship) SponsorshipSnapshot {
	return SponsorshipSnapshot{
		ID:         s.ID,
		SponsorID:  s.SponsorID,
		EventID:    s.EventID,
		Type:       s.Type,
		Amount:     s.Amount,
		Status:     s.Status,
		ApprovedAt: s.ApprovedAt,
	}
}

func describePledge(kind string, amount *float64, inKind *string) string {
	if kind == SponsorshipFunds && amount != nil {
		return fmt.Sprintf("$%.2f", *amount)
	}
	if inKind != nil {
		return "in-kind support (" + *inKind + ")"
	}
	return "in-kind support"
}
