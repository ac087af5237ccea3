package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type SignupResponse struct {
	Signup    SignupDTO `json:"signup"`
	Event     EventDTO  `json:"event"`
	SeatsLeft int       `json:"seatsLeft"`
}

type CancelSignupResponse struct {
	EventID            string `json:"eventId"`
	UserID             string `json:"userId"`
	RemovedMinutes     int    `json:"removedMinutes"`
	RemovedAssignments int    `json:"removedAssignments"`
}

func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	result, effects, err := services.Signup(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusCreated, SignupResponse{
		Signup:    toSignupDTO(result.Signup),
		Event:     toEventDTO(result.Event),
		SeatsLeft: result.SeatsLeft,
	})
}

func (s *Server) CancelMySignup(w http.ResponseWriter, r *http.Request) {
	s.cancelSignup(w, r, CurrentUserID(r))
}

func (s *Server) CancelVolunteerSignup(w http.ResponseWriter, r *http.Request) {
	s.cancelSignup(w, r, chi.URLParam(r, "userId"))
}

func (s *Server) cancelSignup(w http.ResponseWriter, r *http.Request, userID string) {
	result, effects, err := services.CancelSignup(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusOK, CancelSignupResponse{
		EventID:            result.EventID,
		UserID:             result.UserID,
		RemovedMinutes:     result.RemovedMinutes,
		RemovedAssignments: result.RemovedAssignments,
	})
}

func (s *Server) ListEventSignups(w http.ResponseWriter, r *http.Request) {
	rows, err := services.ListEventSignups(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]SignupDTO, 0, len(rows))
	for _, row := range rows {
		dto := toSignupDTO(row.EventSignup)
		dto.UserName = row.UserName
		dto.UserEmail = row.UserEmail
		dto.CheckInAt = row.CheckInAt
		dto.CheckOutAt = row.CheckOutAt
		dto.Minutes = row.Minutes
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[SignupDTO]{Items: items})
}
