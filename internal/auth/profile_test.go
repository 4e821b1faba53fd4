package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/internal/users"
	"github.com/retailhive/retailhive-backend/pkg/db/dbtest"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

func TestProfileGetAndUpdate(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewProfileService(users.NewRepository(conn))
	require.NoError(t, err)
	ctx := context.Background()

	me := dbtest.SeedUser(t, conn, enums.RoleRetailer)
	other := dbtest.SeedUser(t, conn, enums.RoleCustomer)

	got, err := svc.Get(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, me.Username, got.Username)

	updated, err := svc.Update(ctx, me.ID, ProfileUpdateRequest{
		FirstName:    strPtr(" Rita "),
		BusinessName: strPtr("Rita's Store"),
		Email:        strPtr("Rita@Example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Rita", updated.FirstName)
	assert.Equal(t, "rita@example.com", updated.Email)
	require.NotNil(t, updated.BusinessName)
	assert.Equal(t, "Rita's Store", *updated.BusinessName)

	// keeping your own email is fine
	_, err = svc.Update(ctx, me.ID, ProfileUpdateRequest{Email: strPtr("rita@example.com")})
	require.NoError(t, err)

	_, err = svc.Update(ctx, me.ID, ProfileUpdateRequest{Email: strPtr(other.Email)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
