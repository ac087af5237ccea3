package httpapi

import (
	"net/http"
	"strings"
	"time"

	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type EventRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=10000"`
	Category    *string    `json:"category" validate:"omitempty,max=80"`
	StartsAt    *time.Time `json:"startsAt" validate:"required"`
	EndsAt      *time.Time `json:"endsAt" validate:"required"`
	Location    *string    `json:"location" validate:"omitempty,max=300"`
	IsOnline    bool       `json:"isOnline"`
	Capacity    *int       `json:"capacity" validate:"required,gt=0"`
}

func (req EventRequest) input() services.EventInput {
	return services.EventInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Location:    req.Location,
		IsOnline:    req.IsOnline,
		Capacity:    req.Capacity,
	}
}

func eventFilterFromQuery(r *http.Request, pageSize, offset int) services.EventFilter {
	q := r.URL.Query()
	return services.EventFilter{
		Status:   q.Get("status"),
		Approval: q.Get("approval"),
		Category: q.Get("category"),
		Search:   strings.TrimSpace(q.Get("search")),
		Limit:    pageSize,
		Offset:   offset,
	}
}

func (s *Server) writeEventPage(w http.ResponseWriter, r *http.Request, filter services.EventFilter, page int) {
	items, total, err := services.ListEvents(r.Context(), s.DB, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, PagedResponse[EventDTO]{
		Items:    toEventDetailDTOs(items),
		Total:    total,
		Page:     page,
		PageSize: filter.Limit,
	})
}

// ListPublicEvents lists approved, published events that have not ended yet.
func (s *Server) ListPublicEvents(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := pageParams(r, 20)
	filter := eventFilterFromQuery(r, pageSize, offset)
	filter.Status = string(services.EventPublished)
	filter.Approval = string(services.ApprovalApproved)
	filter.UpcomingOnly = r.URL.Query().Get("includePast") != "true"
	s.writeEventPage(w, r, filter, page)
}

func (s *Server) MyManagedEvents(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := pageParams(r, 20)
	filter := eventFilterFromQuery(r, pageSize, offset)
	filter.CreatedBy = CurrentUserID(r)
	s.writeEventPage(w, r, filter, page)
}

func (s *Server) AdminListEvents(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := pageParams(r, 20)
	filter := eventFilterFromQuery(r, pageSize, offset)
	filter.CreatedBy = r.URL.Query().Get("createdBy")
	s.writeEventPage(w, r, filter, page)
}

func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	detail, err := services.GetEvent(r.Context(), s.DB, chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !detail.Visible(s.optionalActor(r)) {
		WriteError(w, http.StatusNotFound, "Event not found")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]EventDTO{"event": toEventDetailDTO(detail)})
}

func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	event, effects, err := services.CreateEvent(r.Context(), s.DB, CurrentActor(r), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusCreated, map[string]EventDTO{"event": toEventDTO(event)})
}

func (s *Server) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	event, err := services.UpdateEvent(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]EventDTO{"event": toEventDTO(event)})
}

func (s *Server) PublishEvent(w http.ResponseWriter, r *http.Request) {
	event, effects, err := services.PublishEvent(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	s.writeEventTransition(w, r, event, effects, err)
}

func (s *Server) CancelEvent(w http.ResponseWriter, r *http.Request) {
	event, effects, err := services.CancelEvent(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	s.writeEventTransition(w, r, event, effects, err)
}

func (s *Server) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	event, effects, err := services.CompleteEvent(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	s.writeEventTransition(w, r, event, effects, err)
}

func (s *Server) writeEventTransition(w http.ResponseWriter, r *http.Request, event models.Event, effects []services.Effect, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusOK, map[string]EventDTO{"event": toEventDTO(event)})
}

func (s *Server) EventAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := services.GetEventAnalytics(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
