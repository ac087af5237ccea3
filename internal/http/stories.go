package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type StoryRequest struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Body       string   `json:"body" validate:"required,max=20000"`
	SponsorIDs []string `json:"sponsorIds" validate:"omitempty,dive,uuid"`
}

func (s *Server) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req StoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	story, effects, err := services.CreateStory(r.Context(), s.DB, CurrentActor(r), services.StoryInput{
		EventID:          chi.URLParam(r, "eventId"),
		Title:            req.Title,
		Body:             req.Body,
		TaggedSponsorIDs: req.SponsorIDs,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusCreated, map[string]StoryDTO{"story": toStoryDTO(story)})
}

func (s *Server) EventStories(w http.ResponseWriter, r *http.Request) {
	event, err := services.GetEvent(r.Context(), s.DB, chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !event.Visible(s.optionalActor(r)) {
		WriteError(w, http.StatusNotFound, "Event not found")
		return
	}
	s.writeApprovedStories(w, r, event.ID)
}

func (s *Server) ListStories(w http.ResponseWriter, r *http.Request) {
	s.writeApprovedStories(w, r, "")
}

func (s *Server) writeApprovedStories(w http.ResponseWriter, r *http.Request, eventID string) {
	rows, err := services.ListApprovedStories(r.Context(), s.DB, eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]StoryDTO, 0, len(rows))
	for _, row := range rows {
		dto := toStoryDTO(row.EventStory)
		dto.AuthorName = row.AuthorName
		dto.EventTitle = row.EventTitle
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[StoryDTO]{Items: items})
}

func (s *Server) DeleteStory(w http.ResponseWriter, r *http.Request) {
	if err := services.DeleteStory(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "storyId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
