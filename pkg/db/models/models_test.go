package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProductAverageRating(t *testing.T) {
	assert.Zero(t, Product{}.AverageRating())

	p := Product{Reviews: []ProductReview{{Rating: 5}, {Rating: 4}, {Rating: 2}}}
	assert.InDelta(t, 11.0/3.0, p.AverageRating(), 0.0001)
}

func TestProductOwnedBy(t *testing.T) {
	owner := uuid.New()
	assert.True(t, Product{RetailerID: &owner}.OwnedBy(owner))
	assert.False(t, Product{RetailerID: &owner}.OwnedBy(uuid.New()))
	assert.False(t, Product{}.OwnedBy(owner))
}

func TestLineTotals(t *testing.T) {
	item := CartItem{Quantity: 3, Product: &Product{Price: decimal.RequireFromString("19.99")}}
	assert.True(t, decimal.RequireFromString("59.97").Equal(item.LineTotal()))
	assert.True(t, CartItem{Quantity: 2}.LineTotal().IsZero())

	orderItem := OrderItem{Quantity: 2, Price: decimal.RequireFromString("10.00")}
	assert.True(t, decimal.NewFromInt(20).Equal(orderItem.TotalPrice()))
}

func TestBeforeCreateAssignsIDOnce(t *testing.T) {
	cart := &Cart{}
	assert.NoError(t, cart.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, cart.ID)

	fixed := uuid.New()
	item := &CartItem{ID: fixed}
	assert.NoError(t, item.BeforeCreate(nil))
	assert.Equal(t, fixed, item.ID)
}
