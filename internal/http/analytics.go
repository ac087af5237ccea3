package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/services"

	"github.com/gorilla/websocket"
)

type HealthHistoryResponse struct {
	Items []services.HealthSample `json:"items"`
}

func (s *Server) AnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := services.GetEngagementOverview(r.Context(), s.DB)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

func (s *Server) HealthHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 120)
	if limit > 500 {
		limit = 500
	}
	items, err := services.HealthHistory(r.Context(), s.DB, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, HealthHistoryResponse{Items: items})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ActivitySocket streams the admin activity feed. Browsers cannot set headers
// on websocket requests, so the access token comes in the query.
func (s *Server) ActivitySocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	claims, err := s.Tokens.Parse(r.Context(), token, services.TokenAccess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !services.AuthorizeRoles(claims.Roles, services.RoleAdmin) {
		WriteError(w, http.StatusForbidden, "Not allowed")
		return
	}
	if s.Hub == nil {
		WriteError(w, http.StatusServiceUnavailable, "Activity feed unavailable")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Hub.Add(conn)
	defer func() {
		s.Hub.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
