package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/enums"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "retailhive",
	ExpirationMinutes: 30,
}

func TestMintAndParseAccessToken(t *testing.T) {
	userID := uuid.New()
	token, err := MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{
		UserID:  userID,
		Role:    enums.RoleRetailer,
		IsStaff: true,
		JTI:     "session-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWTConfig, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.RoleRetailer, claims.Role)
	assert.True(t, claims.IsStaff)
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, "retailhive", claims.Issuer)
}

func TestMintGeneratesJTI(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWTConfig, token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
}

func TestMintValidatesInput(t *testing.T) {
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer}

	_, err := MintAccessToken(config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, time.Now(), payload)
	assert.Error(t, err)

	_, err = MintAccessToken(config.JWTConfig{Secret: "s", ExpirationMinutes: 1}, time.Now(), payload)
	assert.Error(t, err)

	_, err = MintAccessToken(config.JWTConfig{Secret: "s", Issuer: "x"}, time.Now(), payload)
	assert.Error(t, err)

	_, err = MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"})
	assert.Error(t, err)

	_, err = MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{Role: enums.RoleAdmin})
	assert.Error(t, err)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	expired, err := MintAccessToken(testJWTConfig, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWTConfig, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(testJWTConfig, expired)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleCustomer, claims.Role)

	other := testJWTConfig
	other.Secret = "another"
	_, err = ParseAccessToken(other, expired)
	assert.Error(t, err)

	wrongIssuer := testJWTConfig
	wrongIssuer.Issuer = "someone-else"
	valid, err := MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer})
	require.NoError(t, err)
	_, err = ParseAccessToken(wrongIssuer, valid)
	assert.Error(t, err)

	_, err = ParseAccessToken(testJWTConfig, "garbage")
	assert.Error(t, err)
}
