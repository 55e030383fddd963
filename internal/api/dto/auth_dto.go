package dto

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DeviceTokenRequest registers a push token.
type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HasDeviceToken bool      `json:"hasDeviceToken"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		HasDeviceToken: domain.StringValue(u.DeviceToken) != "",
		CreatedAt:      u.CreatedAt,
	}
}
