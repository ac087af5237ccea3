package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type ModerationRequest struct {
	Decision string  `json:"decision"`
	Note     *string `json:"note" validate:"omitempty,max=1000"`
}

type ModerationResponse struct {
	Kind     services.ModerationKind `json:"kind"`
	EntityID string                  `json:"entityId"`
	Before   services.Snapshot       `json:"before"`
	After    services.Snapshot       `json:"after"`
}

type ModerationQueueResponse struct {
	Events          []EventDTO          `json:"events"`
	SponsorProfiles []SponsorProfileDTO `json:"sponsorProfiles"`
	Media           []MediaDTO          `json:"media"`
	Stories         []StoryDTO          `json:"stories"`
}

// Moderate takes the decision from the body or, for bodiless calls, from the
// decision query parameter.
func (s *Server) Moderate(w http.ResponseWriter, r *http.Request) {
	kind, err := services.ParseModerationKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req ModerationRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	raw := req.Decision
	if strings.TrimSpace(raw) == "" {
		raw = r.URL.Query().Get("decision")
	}
	decision, err := services.ParseDecision(raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, effects, err := services.Moderate(r.Context(), s.DB, CurrentActor(r), kind, chi.URLParam(r, "entityId"), decision, req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusOK, ModerationResponse{
		Kind:     result.Kind,
		EntityID: result.EntityID,
		Before:   result.Before,
		After:    result.After,
	})
}

func (s *Server) ModerationQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := services.PendingModeration(r.Context(), s.DB)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	profiles := make([]SponsorProfileDTO, 0, len(queue.SponsorProfiles))
	for _, p := range queue.SponsorProfiles {
		profiles = append(profiles, toSponsorProfileDTO(p))
	}
	WriteJSON(w, http.StatusOK, ModerationQueueResponse{
		Events:          toEventDetailDTOs(queue.Events),
		SponsorProfiles: profiles,
		Media:           toMediaDTOs(queue.Media),
		Stories:         toStoryDTOs(queue.Stories),
	})
}

func (s *Server) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := services.ListAuditLogs(r.Context(), s.DB, services.AuditFilter{
		EntityType: strings.ToUpper(q.Get("entityType")),
		EntityID:   q.Get("entityId"),
		ActorID:    q.Get("actorId"),
		Limit:      parseInt(q.Get("limit"), 100),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]AuditLogDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toAuditLogDTO(row))
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[AuditLogDTO]{Items: items})
}

func rawJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return json.RawMessage(raw)
}
