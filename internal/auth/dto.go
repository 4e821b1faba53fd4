package auth

import "github.com/retailhive/retailhive-backend/internal/users"

// LoginRequest accepts either a username or an email.
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the token pair and the user.
type LoginResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Username        string  `json:"username" validate:"required,max=150"`
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required"`
	PasswordConfirm string  `json:"password_confirm"`
	FirstName       string  `json:"first_name" validate:"max=150"`
	LastName        string  `json:"last_name" validate:"max=150"`
	Role            string  `json:"role"`
	BusinessName    *string `json:"business_name"`
}

// ProfileUpdateRequest is the PUT /profile/update body.
type ProfileUpdateRequest struct {
	FirstName    *string `json:"first_name" validate:"omitempty,max=150"`
	LastName     *string `json:"last_name" validate:"omitempty,max=150"`
	Email        *string `json:"email" validate:"omitempty,email"`
	BusinessName *string `json:"business_name"`
}
