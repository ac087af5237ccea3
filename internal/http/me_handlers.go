package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/services"
)

type ProfileUpdateRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type HoursResponse struct {
	Summary services.VolunteerSummary `json:"summary"`
	Items   []HoursDTO                `json:"items"`
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	user, err := services.GetUser(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]UserDTO{"user": toUserDTO(user)})
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, err := services.UpdateProfile(r.Context(), s.DB, CurrentUserID(r), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]UserDTO{"user": toUserDTO(user)})
}

func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		WriteError(w, http.StatusBadRequest, "Password confirmation does not match")
		return
	}
	if err := services.ChangePassword(r.Context(), s.DB, s.Tokens, CurrentUserID(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateAccount soft-deletes the caller and revokes the token in use.
func (s *Server) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := services.DeactivateSelf(r.Context(), s.DB, CurrentActor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.Tokens.Revoke(r.Context(), CurrentClaims(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Ping(w http.ResponseWriter, r *http.Request) {
	_ = services.TouchLastSeen(r.Context(), s.DB, CurrentUserID(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) MyHours(w http.ResponseWriter, r *http.Request) {
	userID := CurrentUserID(r)
	summary, err := services.GetVolunteerSummary(r.Context(), s.DB, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rows, err := services.ListHours(r.Context(), s.DB, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]HoursDTO, 0, len(rows))
	for _, row := range rows {
		dto := toHoursDTO(row.HoursEntry)
		dto.EventTitle = row.EventTitle
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, HoursResponse{Summary: summary, Items: items})
}

func (s *Server) MySignups(w http.ResponseWriter, r *http.Request) {
	rows, err := services.ListUserSignups(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]SignupDTO, 0, len(rows))
	for _, row := range rows {
		dto := toSignupDTO(row.EventSignup)
		starts, ends := row.StartsAt, row.EndsAt
		dto.EventTitle = row.EventTitle
		dto.EventStatus = row.EventStatus
		dto.StartsAt = &starts
		dto.EndsAt = &ends
		dto.Location = row.Location
		dto.IsOnline = row.IsOnline
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[SignupDTO]{Items: items})
}

func (s *Server) MyMedia(w http.ResponseWriter, r *http.Request) {
	rows, err := services.ListMyMedia(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[MediaDTO]{Items: toMediaDTOs(rows)})
}

func (s *Server) MyStories(w http.ResponseWriter, r *http.Request) {
	rows, err := services.ListMyStories(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[StoryDTO]{Items: toStoryDTOs(rows)})
}
