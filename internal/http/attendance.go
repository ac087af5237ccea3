package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

// AttendanceRequest lets a manager act for a volunteer. Volunteers omit userId.
type AttendanceRequest struct {
	UserID          string   `json:"userId" validate:"omitempty,uuid"`
	MinutesOverride *float64 `json:"minutesOverride"`
}

type AttendanceResponse struct {
	Attendance        AttendanceDTO `json:"attendance"`
	AlreadyCheckedIn  bool          `json:"alreadyCheckedIn"`
	AlreadyCheckedOut bool          `json:"alreadyCheckedOut"`
}

type RecordHoursRequest struct {
	Minutes int     `json:"minutes" validate:"required,gt=0"`
	Note    *string `json:"note" validate:"omitempty,max=500"`
}

func decodeAttendance(r *http.Request) (AttendanceRequest, error) {
	var req AttendanceRequest
	err := decodeOptionalJSON(r, &req)
	return req, err
}

func (s *Server) CheckIn(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAttendance(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, effects, err := services.CheckIn(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), req.UserID)
	s.writeAttendance(w, r, result, effects, err)
}

func (s *Server) CheckOut(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAttendance(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, effects, err := services.CheckOut(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), req.UserID, req.MinutesOverride)
	s.writeAttendance(w, r, result, effects, err)
}

func (s *Server) writeAttendance(w http.ResponseWriter, r *http.Request, result services.AttendanceResult, effects []services.Effect, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusOK, AttendanceResponse{
		Attendance:        toAttendanceDTO(result.Attendance),
		AlreadyCheckedIn:  result.AlreadyCheckedIn,
		AlreadyCheckedOut: result.AlreadyCheckedOut,
	})
}

func (s *Server) ListAttendance(w http.ResponseWriter, r *http.Request) {
	rows, err := services.ListAttendance(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]AttendanceDTO, 0, len(rows))
	for _, row := range rows {
		dto := toAttendanceDTO(row.EventAttendance)
		dto.UserName = row.UserName
		dto.UserEmail = row.UserEmail
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[AttendanceDTO]{Items: items})
}

func (s *Server) RecordHours(w http.ResponseWriter, r *http.Request) {
	var req RecordHoursRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	entry, err := services.RecordVolunteerHours(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"), req.Minutes, req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]HoursDTO{"entry": toHoursDTO(entry)})
}
