package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type SetRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := pageParams(r, 20)
	filter := services.UserFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Role:   r.URL.Query().Get("role"),
		Limit:  pageSize,
		Offset: offset,
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		filter.Active = &active
	}
	users, total, err := services.ListUsers(r.Context(), s.DB, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, PagedResponse[UserDTO]{
		Items:    toUserDTOs(users),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *Server) SetUserRoles(w http.ResponseWriter, r *http.Request) {
	var req SetRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, effects, err := services.SetUserRoles(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "userId"), req.Roles)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusOK, map[string]UserDTO{"user": toUserDTO(user)})
}

func (s *Server) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, effects, err := services.SetUserActive(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "userId"), *req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusOK, map[string]UserDTO{"user": toUserDTO(user)})
}
