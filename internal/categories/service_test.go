package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/pkg/db/dbtest"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

var admin = access.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}

func newService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestCategoryLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin, CategoryInput{Name: "  Shirts ", Description: "Tops"})
	require.NoError(t, err)
	assert.Equal(t, "Shirts", created.Name)

	_, err = svc.Create(ctx, admin, CategoryInput{Name: "Accessories"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Accessories", list[0].Name)

	updated, err := svc.Update(ctx, admin, created.ID, CategoryInput{Name: "T-Shirts", Description: "Cotton"})
	require.NoError(t, err)
	assert.Equal(t, "T-Shirts", updated.Name)
	assert.Equal(t, "Cotton", updated.Description)

	require.NoError(t, svc.Delete(ctx, admin, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCategoryWritesRequireAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, access.Principal{}, CategoryInput{Name: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	retailer := access.Principal{UserID: uuid.New(), Role: enums.RoleRetailer}
	_, err = svc.Create(ctx, retailer, CategoryInput{Name: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCategoryNameMustNotBeBlank(t *testing.T) {
	svc := newService(t)
	_, err := svc.Create(context.Background(), admin, CategoryInput{Name: "   "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCategoryMissingRows(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Update(ctx, admin, uuid.New(), CategoryInput{Name: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, admin, uuid.New()), pkgerrors.CodeNotFound))
}
