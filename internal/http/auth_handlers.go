package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/services"
)

type RegisterRequest struct {
	Name            string  `json:"name" validate:"required,max=120"`
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required,min=8"`
	ConfirmPassword *string `json:"confirmPassword"`
	Role            string  `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	ExpiresAt    int64   `json:"expiresAt"`
	User         UserDTO `json:"user"`
}

func tokenResponse(user models.User, pair services.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         toUserDTO(user),
	}
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.ConfirmPassword != nil && req.Password != *req.ConfirmPassword {
		WriteError(w, http.StatusBadRequest, "Password confirmation does not match")
		return
	}
	user, effects, err := services.Register(r.Context(), s.DB, s.Tokens, services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusCreated, map[string]UserDTO{"user": toUserDTO(user)})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, pair, err := services.Login(r.Context(), s.DB, s.Tokens, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse(user, pair))
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	user, pair, err := services.RefreshSession(r.Context(), s.DB, s.Tokens, req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse(user, pair))
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	_ = decodeOptionalJSON(r, &req)
	if err := services.Logout(r.Context(), s.Tokens, CurrentClaims(r), req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, http.StatusBadRequest, "Verification token is required")
		return
	}
	user, err := services.VerifyEmail(r.Context(), s.DB, s.Tokens, token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]UserDTO{"user": toUserDTO(user)})
}
