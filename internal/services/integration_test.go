package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"canopy-backend-go/internal/db"
	"canopy-backend-go/internal/migrations"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// These tests need a scratch Postgres database; they are skipped unless
// CANOPY_TEST_DATABASE_URL points at one.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("CANOPY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CANOPY_TEST_DATABASE_URL not set")
	}
	database, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := migrations.Apply(database, migrations.Files()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func createUser(t *testing.T, database *sqlx.DB, roles ...Role) Actor {
	t.Helper()
	id := uuid.NewString()
	email := fmt.Sprintf("%s@example.org", id[:8])
	name := "User " + id[:8]
	raw := RoleStrings(roles)
	if _, err := database.Exec(`
INSERT INTO users (id, name, email, password_hash, roles, role, is_active, created_at, updated_at)
VALUES ($1,$2,$3,'x',$4,$5,TRUE,now(),now())
`, id, name, email, pq.StringArray(raw), string(PrimaryRole(roles))); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return Actor{ID: id, Email: email, Name: name, Roles: raw}
}

// publishedEvent creates, approves and publishes an event owned by a new manager.
func publishedEvent(t *testing.T, database *sqlx.DB, capacity int) (manager, admin Actor, eventID string) {
	t.Helper()
	ctx := context.Background()
	manager = createUser(t, database, RoleEventManager)
	admin = createUser(t, database, RoleAdmin)
	starts := time.Now().UTC().Add(48 * time.Hour)
	ends := starts.Add(3 * time.Hour)
	location := "Riverside park"
	event, _, err := CreateEvent(ctx, database, manager, EventInput{
		Title:    "River cleanup",
		StartsAt: &starts,
		EndsAt:   &ends,
		Location: &location,
		Capacity: &capacity,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, _, err := Moderate(ctx, database, admin, KindEvent, event.ID, DecisionApprove, nil); err != nil {
		t.Fatalf("approve event: %v", err)
	}
	if _, _, err := PublishEvent(ctx, database, manager, event.ID); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	return manager, admin, event.ID
}

func TestSignupCapacityUnderConcurrency(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	_, _, eventID := publishedEvent(t, database, 3)

	volunteers := make([]Actor, 10)
	for i := range volunteers {
		volunteers[i] = createUser(t, database, RoleVolunteer)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, full := 0, 0
	for _, v := range volunteers {
		wg.Add(1)
		go func(v Actor) {
			defer wg.Done()
			_, _, err := Signup(ctx, database, v, eventID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if svcErr, isSvc := AsServiceError(err); isSvc && svcErr.Status == 409 {
				full++
				return
			}
			t.Errorf("unexpected signup error: %v", err)
		}(v)
	}
	wg.Wait()
	if ok != 3 || full != 7 {
		t.Fatalf("expected 3 signups and 7 conflicts, got %d and %d", ok, full)
	}
	var count int
	if err := database.Get(&count, `SELECT count(*) FROM event_signups WHERE event_id = $1`, eventID); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 stored signups, got %d", count)
	}
}

func TestCheckOutIsIdempotentAndCancelRemovesMinutes(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	_, _, eventID := publishedEvent(t, database, 5)
	volunteer := createUser(t, database, RoleVolunteer)

	if _, _, err := Signup(ctx, database, volunteer, eventID); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := CheckIn(ctx, database, volunteer, eventID, ""); err != nil {
		t.Fatalf("check in: %v", err)
	}
	override := 90.0
	first, effects, err := CheckOut(ctx, database, volunteer, eventID, "", &override)
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if first.Attendance.Minutes == nil || *first.Attendance.Minutes != 90 || len(effects) == 0 {
		t.Fatalf("unexpected first checkout %+v effects=%d", first.Attendance, len(effects))
	}
	second, effects, err := CheckOut(ctx, database, volunteer, eventID, "", nil)
	if err != nil {
		t.Fatalf("second check out: %v", err)
	}
	if !second.AlreadyCheckedOut || len(effects) != 0 {
		t.Fatalf("second checkout should be a no-op: %+v effects=%d", second, len(effects))
	}
	if second.Attendance.Minutes == nil || *second.Attendance.Minutes != *first.Attendance.Minutes {
		t.Fatalf("second checkout changed minutes: %v vs %v", second.Attendance.Minutes, first.Attendance.Minutes)
	}
	if first.Attendance.HoursEntryID == nil || second.Attendance.HoursEntryID == nil ||
		*second.Attendance.HoursEntryID != *first.Attendance.HoursEntryID {
		t.Fatalf("second checkout changed hours entry: %v vs %v", second.Attendance.HoursEntryID, first.Attendance.HoursEntryID)
	}
	var entries int
	if err := database.Get(&entries, `SELECT count(*) FROM volunteer_hours WHERE event_id = $1 AND user_id = $2`, eventID, volunteer.ID); err != nil {
		t.Fatalf("count hours: %v", err)
	}
	if entries != 1 {
		t.Fatalf("expected one hours entry, got %d", entries)
	}

	result, _, err := CancelSignup(ctx, database, volunteer, eventID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.RemovedMinutes != 90 {
		t.Fatalf("expected 90 removed minutes, got %d", result.RemovedMinutes)
	}
	summary, err := GetVolunteerSummary(ctx, database, volunteer.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalMinutes != 0 {
		t.Fatalf("expected no minutes after cancel, got %d", summary.TotalMinutes)
	}
}

func TestRejectingSponsorDeclinesSponsorshipsAndReapplyResets(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	_, admin, firstEvent := publishedEvent(t, database, 5)
	_, _, secondEvent := publishedEvent(t, database, 5)
	sponsorUser := createUser(t, database, RoleVolunteer)

	profile, _, err := ApplySponsor(ctx, database, sponsorUser, SponsorProfileInput{OrgName: "Acme", ContactEmail: "acme@example.org"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	sponsorUser.Roles = append(sponsorUser.Roles, string(RoleSponsor))
	amount := 250.0
	pledges := []string{}
	for _, eventID := range []string{firstEvent, secondEvent} {
		pledge, _, err := Pledge(ctx, database, sponsorUser, PledgeInput{EventID: eventID, Type: SponsorshipFunds, Amount: &amount})
		if err != nil {
			t.Fatalf("pledge: %v", err)
		}
		pledges = append(pledges, pledge.ID)
	}

	if _, _, err := UpdateSponsorshipApproval(ctx, database, admin, pledges[0], SponsorApproved, nil); err == nil {
		t.Fatal("approving a sponsorship of a pending sponsor must fail")
	}
	if _, _, err := Moderate(ctx, database, admin, KindSponsorProfile, profile.ID, DecisionApprove, nil); err != nil {
		t.Fatalf("approve profile: %v", err)
	}
	for _, id := range pledges {
		approved, _, err := UpdateSponsorshipApproval(ctx, database, admin, id, SponsorApproved, nil)
		if err != nil {
			t.Fatalf("approve sponsorship: %v", err)
		}
		if approved.ApprovedAt == nil {
			t.Fatalf("approved sponsorship %s has no approval time", id)
		}
	}

	type row struct {
		Status     string     `db:"status"`
		ApprovedAt *time.Time `db:"approved_at"`
	}
	expectAll := func(want string) {
		t.Helper()
		for _, id := range pledges {
			var r row
			if err := database.Get(&r, `SELECT status, approved_at FROM sponsorships WHERE id = $1`, id); err != nil {
				t.Fatalf("load sponsorship: %v", err)
			}
			if r.Status != want || r.ApprovedAt != nil {
				t.Fatalf("sponsorship %s: expected %s with no approval time, got %s %v", id, want, r.Status, r.ApprovedAt)
			}
		}
	}

	if _, _, err := Moderate(ctx, database, admin, KindSponsorProfile, profile.ID, DecisionReject, nil); err != nil {
		t.Fatalf("reject profile: %v", err)
	}
	expectAll(SponsorDeclined)

	if _, _, err := ApplySponsor(ctx, database, sponsorUser, SponsorProfileInput{OrgName: "Acme", ContactEmail: "acme@example.org"}); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	expectAll(SponsorPending)
}

func TestRejectAfterPublishReturnsEventToDraft(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	manager, admin, eventID := publishedEvent(t, database, 5)

	if _, _, err := Moderate(ctx, database, admin, KindEvent, eventID, DecisionReject, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}
	event, err := GetEvent(ctx, database, eventID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if EventStatus(event.Status) != EventDraft || ApprovalStatus(event.ApprovalStatus) != ApprovalRejected {
		t.Fatalf("unexpected state %s/%s", event.Status, event.ApprovalStatus)
	}
	var published *time.Time
	if err := database.Get(&published, `SELECT published_at FROM events WHERE id = $1`, eventID); err != nil {
		t.Fatalf("published_at: %v", err)
	}
	if published != nil {
		t.Fatalf("rejected event kept published_at %v", published)
	}
	if _, _, err := PublishEvent(ctx, database, manager, eventID); err == nil {
		t.Fatal("publishing a rejected event must fail")
	}
	var audits int
	if err := database.Get(&audits, `SELECT count(*) FROM audit_logs WHERE entity_type = 'EVENT' AND entity_id = $1`, eventID); err != nil {
		t.Fatalf("audits: %v", err)
	}
	if audits < 2 {
		t.Fatalf("expected approve and reject audit rows, got %d", audits)
	}
}

func TestCancelSignupRemovesAssignmentsAttendanceAndAllHours(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	manager, _, eventID := publishedEvent(t, database, 5)
	volunteer := createUser(t, database, RoleVolunteer)

	if _, _, err := Signup(ctx, database, volunteer, eventID); err != nil {
		t.Fatalf("signup: %v", err)
	}
	task, err := CreateTask(ctx, database, manager, eventID, TaskInput{Title: "Bag collection", RequiredVolunteers: 2})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, _, err := AssignTask(ctx, database, manager, eventID, task.ID, volunteer.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, _, err := CheckIn(ctx, database, volunteer, eventID, ""); err != nil {
		t.Fatalf("check in: %v", err)
	}
	override := 60.0
	if _, _, err := CheckOut(ctx, database, volunteer, eventID, "", &override); err != nil {
		t.Fatalf("check out: %v", err)
	}
	if _, err := RecordVolunteerHours(ctx, database, volunteer, eventID, 25, nil); err != nil {
		t.Fatalf("record hours: %v", err)
	}

	result, _, err := CancelSignup(ctx, database, volunteer, eventID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.RemovedMinutes != 85 {
		t.Fatalf("expected 85 removed minutes, got %d", result.RemovedMinutes)
	}
	if result.RemovedAssignments != 1 {
		t.Fatalf("expected one removed assignment, got %d", result.RemovedAssignments)
	}
	for _, table := range []string{"event_assignments", "event_attendance", "volunteer_hours", "event_signups"} {
		var n int
		if err := database.Get(&n, `SELECT count(*) FROM `+table+` WHERE event_id = $1 AND user_id = $2`, eventID, volunteer.ID); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("expected no %s rows after cancel, got %d", table, n)
		}
	}
}

func TestUpdateEventChecksOwnershipBeforePayload(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	_, _, eventID := publishedEvent(t, database, 5)
	outsider := createUser(t, database, RoleEventManager)

	_, err := UpdateEvent(ctx, database, outsider, eventID, EventInput{})
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Status != 403 {
		t.Fatalf("expected 403 for a non-owner with an invalid payload, got %v", err)
	}
}

func TestSelfReportedHoursNeedTrackedEvent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	manager, _, eventID := publishedEvent(t, database, 5)
	volunteer := createUser(t, database, RoleVolunteer)

	if _, _, err := Signup(ctx, database, volunteer, eventID); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := CancelEvent(ctx, database, manager, eventID); err != nil {
		t.Fatalf("cancel event: %v", err)
	}
	_, err := RecordVolunteerHours(ctx, database, volunteer, eventID, 30, nil)
	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Status != 400 {
		t.Fatalf("expected 400 for hours on a cancelled event, got %v", err)
	}
}
