package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/retailhive/retailhive-backend/pkg/enums"
)

// AccessTokenPayload is the data needed to mint an access token.
type AccessTokenPayload struct {
	UserID  uuid.UUID
	Role    enums.Role
	IsStaff bool
	JTI     string
}

// AccessTokenClaims is the JWT body handed to clients.
type AccessTokenClaims struct {
	UserID  uuid.UUID  `json:"user_id"`
	Role    enums.Role `json:"role"`
	IsStaff bool       `json:"is_staff,omitempty"`
	jwt.RegisteredClaims
}
