package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/notify"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TaskInput struct {
	Title              string
	Description        *string
	RequiredVolunteers int
}

type TaskDetail struct {
	models.EventTask
	AssignedCount  int `db:"assigned_count"`
	CompletedCount int `db:"completed_count"`
}

func CreateTask(ctx context.Context, database *sqlx.DB, actor Actor, eventID string, input TaskInput) (models.EventTask, error) {
	if _, err := getEventForManager(ctx, database, actor, eventID); err != nil {
		return models.EventTask{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return models.EventTask{}, ErrBadRequest("Task title is required")
	}
	if input.RequiredVolunteers <= 0 {
		return models.EventTask{}, ErrBadRequest("Required volunteers must be greater than zero")
	}
	now := time.Now().UTC()
	task := models.EventTask{
		ID:                 uuid.NewString(),
		EventID:            eventID,
		Title:              title,
		Description:        trimOptional(input.Description),
		RequiredVolunteers: input.RequiredVolunteers,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	_, err := database.ExecContext(ctx, `
INSERT INTO event_tasks (id, event_id, title, description, required_volunteers, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
`, task.ID, task.EventID, task.Title, task.Description, task.RequiredVolunteers, now)
	if err != nil {
		return models.EventTask{}, WrapError(err, "create task")
	}
	return task, nil
}

func ListTasks(ctx context.Context, database *sqlx.DB, eventID string) ([]TaskDetail, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return nil, ErrNotFound("Event not found")
	}
	tasks := []TaskDetail{}
	err := database.SelectContext(ctx, &tasks, `
SELECT t.id, t.event_id, t.title, t.description, t.required_volunteers, t.created_at, t.updated_at,
       count(a.id) AS assigned_count,
       count(a.id) FILTER (WHERE a.status = 'COMPLETED') AS completed_count
FROM event_tasks t
LEFT JOIN event_assignments a ON a.task_id = t.id
WHERE t.event_id = $1
GROUP BY t.id
ORDER BY t.created_at ASC
`, eventID)
	return tasks, err
}

func DeleteTask(ctx context.Context, database *sqlx.DB, actor Actor, eventID, taskID string) error {
	if _, err := getEventForManager(ctx, database, actor, eventID); err != nil {
		return err
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return ErrNotFound("Task not found")
	}
	res, err := database.ExecContext(ctx, `DELETE FROM event_tasks WHERE id = $1 AND event_id = $2`, taskID, eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("Task not found")
	}
	return nil
}

// AssignTask assigns a signed-up volunteer to one of the event's tasks.
func AssignTask(ctx context.Context, database *sqlx.DB, actor Actor, eventID, taskID, userID string) (models.EventAssignment, []Effect, error) {
	event, err := getEventForManager(ctx, database, actor, eventID)
	if err != nil {
		return models.EventAssignment{}, nil, err
	}
	task, err := getTask(ctx, database, eventID, taskID)
	if err != nil {
		return models.EventAssignment{}, nil, err
	}
	volunteer, err := GetUser(ctx, database, userID)
	if err != nil {
		return models.EventAssignment{}, nil, err
	}
	if err := requireSignup(ctx, database, eventID, userID); err != nil {
		return models.EventAssignment{}, nil, err
	}
	now := time.Now().UTC()
	assignment := models.EventAssignment{
		ID:         uuid.NewString(),
		EventID:    eventID,
		TaskID:     taskID,
		UserID:     userID,
		Status:     "ASSIGNED",
		AssignedAt: now,
	}
	_, err = database.ExecContext(ctx, `
INSERT INTO event_assignments (id, event_id, task_id, user_id, status, assigned_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, assignment.ID, eventID, taskID, userID, assignment.Status, now)
	if isUniqueViolation(err) {
		return models.EventAssignment{}, nil, ErrConflict("Volunteer is already assigned to this task")
	}
	if err != nil {
		return models.EventAssignment{}, nil, WrapError(err, "assign task")
	}
	effects := appendEffects(nil,
		activityEffect("assignment.created", "EVENT", eventID, actor.ID, now, map[string]interface{}{"taskId": taskID, "userId": userID}),
		emailEffect(volunteer.Email,
			"New task for "+event.Title,
			"You have a new assignment",
			[]string{
				"Hi " + volunteer.Name + ",",
				"You've been assigned to \"" + task.Title + "\" at \"" + event.Title + "\".",
			},
			&notify.CTA{Label: "View event", URL: "/events/" + eventID}),
	)
	return assignment, effects, nil
}

func CompleteAssignment(ctx context.Context, database *sqlx.DB, actor Actor, eventID, assignmentID string) (models.EventAssignment, error) {
	if _, err := getEventForManager(ctx, database, actor, eventID); err != nil {
		return models.EventAssignment{}, err
	}
	if _, err := uuid.Parse(assignmentID); err != nil {
		return models.EventAssignment{}, ErrNotFound("Assignment not found")
	}
	var assignment models.EventAssignment
	err := database.GetContext(ctx, &assignment, `
UPDATE event_assignments
SET status = 'COMPLETED', completed_at = COALESCE(completed_at, $3)
WHERE id = $1 AND event_id = $2
RETURNING id, event_id, task_id, user_id, status, assigned_at, completed_at
`, assignmentID, eventID, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventAssignment{}, ErrNotFound("Assignment not found")
	}
	return assignment, err
}

func Unassign(ctx context.Context, database *sqlx.DB, actor Actor, eventID, assignmentID string) error {
	if _, err := getEventForManager(ctx, database, actor, eventID); err != nil {
		return err
	}
	if _, err := uuid.Parse(assignmentID); err != nil {
		return ErrNotFound("Assignment not found")
	}
	res, err := database.ExecContext(ctx, `DELETE FROM event_assignments WHERE id = $1 AND event_id = $2`, assignmentID, eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("Assignment not found")
	}
	return nil
}

type AssignmentDetail struct {
	models.EventAssignment
	TaskTitle string `db:"task_title"`
	UserName  string `db:"user_name"`
}

// ListAssignments is visible to the event's manager and to volunteers signed
// up for it.
func ListAssignments(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) ([]AssignmentDetail, error) {
	if _, err := getEventForManager(ctx, database, actor, eventID); err != nil {
		serr, ok := AsServiceError(err)
		if !ok || serr.Status != 403 {
			return nil, err
		}
		if err := requireSignup(ctx, database, eventID, actor.ID); err != nil {
			return nil, ErrForbidden("Only the event team can view assignments")
		}
	}
	rows := []AssignmentDetail{}
	err := database.SelectContext(ctx, &rows, `
SELECT a.id, a.event_id, a.task_id, a.user_id, a.status, a.assigned_at, a.completed_at,
       t.title AS task_title, u.name AS user_name
FROM event_assignments a
JOIN event_tasks t ON t.id = a.task_id
JOIN users u ON u.id = a.user_id
WHERE a.event_id = $1
ORDER BY a.assigned_at ASC
`, eventID)
	return rows, err
}

func getTask(ctx context.Context, q sqlx.QueryerContext, eventID, taskID string) (models.EventTask, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return models.EventTask{}, ErrNotFound("Task not found")
	}
	var task models.EventTask
	err := sqlx.GetContext(ctx, q, &task, `
SELECT id, event_id, title, description, required_volunteers, created_at, updated_at
FROM event_tasks WHERE id = $1
`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventTask{}, ErrNotFound("Task not found")
	}
	if err != nil {
		return models.EventTask{}, err
	}
	if task.EventID != eventID {
		return models.EventTask{}, ErrBadRequest("Task does not belong to this event")
	}
	return task, nil
}
