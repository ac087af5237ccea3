package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type TaskRequest struct {
	Title              string  `json:"title" validate:"required,max=200"`
	Description        *string `json:"description" validate:"omitempty,max=2000"`
	RequiredVolunteers int     `json:"requiredVolunteers" validate:"required,gt=0"`
}

type AssignRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	rows, err := services.ListTasks(r.Context(), s.DB, chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]TaskDTO, 0, len(rows))
	for _, row := range rows {
		dto := toTaskDTO(row.EventTask)
		dto.AssignedCount = row.AssignedCount
		dto.CompletedCount = row.CompletedCount
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[TaskDTO]{Items: items})
}

func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	task, err := services.CreateTask(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), services.TaskInput{
		Title:              req.Title,
		Description:        req.Description,
		RequiredVolunteers: req.RequiredVolunteers,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]TaskDTO{"task": toTaskDTO(task)})
}

func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := services.DeleteTask(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), chi.URLParam(r, "taskId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) AssignTask(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	assignment, effects, err := services.AssignTask(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), chi.URLParam(r, "taskId"), req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusCreated, map[string]AssignmentDTO{"assignment": toAssignmentDTO(assignment)})
}

func (s *Server) ListAssignments(w http.ResponseWriter, r *http.Request) {
	rows, err := services.ListAssignments(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]AssignmentDTO, 0, len(rows))
	for _, row := range rows {
		dto := toAssignmentDTO(row.EventAssignment)
		dto.TaskTitle = row.TaskTitle
		dto.UserName = row.UserName
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[AssignmentDTO]{Items: items})
}

func (s *Server) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	assignment, err := services.CompleteAssignment(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), chi.URLParam(r, "assignmentId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]AssignmentDTO{"assignment": toAssignmentDTO(assignment)})
}

func (s *Server) Unassign(w http.ResponseWriter, r *http.Request) {
	if err := services.Unassign(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), chi.URLParam(r, "assignmentId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
