package httpapi

import (
	"time"

	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/services"
)

type UserDTO struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Roles           []string   `json:"roles"`
	IsActive        bool       `json:"isActive"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	LastSeenAt      *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toUserDTO(user models.User) UserDTO {
	roles := services.RoleStrings(services.NormalizeRoles(user.Roles))
	return UserDTO{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            string(services.DeterminePrimaryRole(user.Roles, user.Role)),
		Roles:           roles,
		IsActive:        user.IsActive,
		EmailVerifiedAt: user.EmailVerifiedAt,
		LastLoginAt:     user.LastLoginAt,
		LastSeenAt:      user.LastSeenAt,
		CreatedAt:       user.CreatedAt,
	}
}

func toUserDTOs(users []models.User) []UserDTO {
	items := make([]UserDTO, 0, len(users))
	for _, user := range users {
		items = append(items, toUserDTO(user))
	}
	return items
}
