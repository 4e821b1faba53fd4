package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/db/dbtest"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(NewRepository(conn), client)
	require.NoError(t, err)
	return svc, conn
}

func qty(n int) *int { return &n }

func TestGetOrCreateIsIdempotent(t *testing.T) {
	svc, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn, enums.RoleCustomer)

	first, err := svc.GetOrCreate(context.Background(), user.ID)
	require.NoError(t, err)
	second, err := svc.GetOrCreate(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.Cart{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateRecoversFromUniqueRace(t *testing.T) {
	_, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn, enums.RoleCustomer)
	existing := models.Cart{UserID: user.ID}
	require.NoError(t, conn.Create(&existing).Error)

	repo := &missingOnceRepo{Repository: NewRepository(conn)}
	svc, err := NewService(repo, db.NewFromGorm(conn))
	require.NoError(t, err)

	cart, err := svc.GetOrCreate(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, cart.ID)
}

// missingOnceRepo hides the cart on the first lookup to force the create path.
type missingOnceRepo struct {
	*Repository
	missed bool
}

func (r *missingOnceRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if !r.missed {
		r.missed = true
		return nil, gorm.ErrRecordNotFound
	}
	return r.Repository.FindByUser(ctx, userID)
}

func TestViewWithoutCartReturnsEmptyShape(t *testing.T) {
	svc, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn, enums.RoleCustomer)

	view, err := svc.View(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Nil(t, view.ID)
	assert.Nil(t, view.CreatedAt)
	assert.Empty(t, view.Items)
	assert.NotNil(t, view.Items)
	assert.Zero(t, view.TotalItems)
	assert.True(t, view.TotalPrice.IsZero())
}

func TestAddItemAccumulatesAndChecksStock(t *testing.T) {
	svc, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn, enums.RoleCustomer)
	cat := dbtest.SeedCategory(t, conn, "Apparel")
	product := dbtest.SeedProduct(t, conn, cat.ID, "Shirt", "10.00", dbtest.WithStock(10))
	ctx := context.Background()

	item, err := svc.AddItem(ctx, user.ID, AddItemInput{ProductID: product.ID.String(), Quantity: qty(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)
	assert.True(t, decimal.RequireFromString("70").Equal(item.TotalPrice))

	_, err = svc.AddItem(ctx, user.ID, AddItemInput{ProductID: product.ID.String(), Quantity: qty(5)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest))
	assert.Equal(t, "Insufficient stock", pkgerrors.As(err).Message())

	item, err = svc.AddItem(ctx, user.ID, AddItemInput{ProductID: product.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 8, item.Quantity)

	view, err := svc.View(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 8, view.TotalItems)
	assert.True(t, decimal.RequireFromString("80").Equal(view.TotalPrice))

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 10, stored.StockQuantity)
}

func TestAddItemValidation(t *testing.T) {
	svc, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn, enums.RoleCustomer)
	cat := dbtest.SeedCategory(t, conn, "Apparel")
	retired := dbtest.SeedProduct(t, conn, cat.ID, "Retired", "10.00", dbtest.Inactive())
	scarce := dbtest.SeedProduct(t, conn, cat.ID, "Scarce", "10.00", dbtest.WithStock(1))
	ctx := context.Background()

	for _, blank := range []string{"", "   ", uuid.Nil.String()} {
		_, err := svc.AddItem(ctx, user.ID, AddItemInput{ProductID: blank})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest))
		assert.Equal(t, "Product ID is required", pkgerrors.As(err).Message())
	}

	_, err := svc.AddItem(ctx, user.ID, AddItemInput{ProductID: "not-a-uuid"})
	require.Error(t, err)
	assert.Equal(t, "Product not found", pkgerrors.As(err).Message())

	missing := uuid.New()
	_, err = svc.AddItem(ctx, user.ID, AddItemInput{ProductID: missing.String()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.AddItem(ctx, user.ID, AddItemInput{ProductID: retired.ID.String()})
	require.Error(t, err)
	assert.Equal(t, "Product not found", pkgerrors.As(err).Message())

	_, err = svc.AddItem(ctx, user.ID, AddItemInput{ProductID: scarce.ID.String(), Quantity: qty(0)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(ctx, user.ID, AddItemInput{ProductID: scarce.ID.String(), Quantity: qty(2)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest))

	var items int64
	require.NoError(t, conn.Model(&models.CartItem{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestRemoveItem(t *testing.T) {
	svc, conn := newTestService(t)
	alice := dbtest.SeedUser(t, conn, enums.RoleCustomer)
	bob := dbtest.SeedUser(t, conn, enums.RoleCustomer)
	cat := dbtest.SeedCategory(t, conn, "Apparel")
	product := dbtest.SeedProduct(t, conn, cat.ID, "Shirt", "10.00")
	ctx := context.Background()

	err := svc.RemoveItem(ctx, bob.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, "Cart not found", pkgerrors.As(err).Message())

	item, err := svc.AddItem(ctx, alice.ID, AddItemInput{ProductID: product.ID.String()})
	require.NoError(t, err)
	_, err = svc.GetOrCreate(ctx, bob.ID)
	require.NoError(t, err)

	err = svc.RemoveItem(ctx, bob.ID, item.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "Cart item not found", pkgerrors.As(err).Message())

	var count int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("id = ?", item.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, svc.RemoveItem(ctx, alice.ID, item.ID))
	view, err := svc.View(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, view.ID)
	assert.Empty(t, view.Items)
}
