package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/internal/access"
	product "github.com/retailhive/retailhive-backend/internal/products"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

type stubRetailerService struct {
	calls    []string
	stockQty *int
	patch    product.ProductPatch
	err      error
}

func (s *stubRetailerService) record(name string) {
	s.calls = append(s.calls, name)
}

func (s *stubRetailerService) List(ctx context.Context, caller access.Principal) ([]product.ProductDTO, error) {
	s.record("list")
	return []product.ProductDTO{}, s.err
}

func (s *stubRetailerService) Get(ctx context.Context, caller access.Principal, id uuid.UUID) (*product.ProductDTO, error) {
	s.record("get")
	return &product.ProductDTO{ID: id}, s.err
}

func (s *stubRetailerService) Create(ctx context.Context, caller access.Principal, input product.ProductInput) (*product.ProductDTO, error) {
	s.record("create")
	return &product.ProductDTO{Name: input.Name}, s.err
}

func (s *stubRetailerService) Update(ctx context.Context, caller access.Principal, id uuid.UUID, patch product.ProductPatch) (*product.ProductDTO, error) {
	s.record("update")
	s.patch = patch
	return &product.ProductDTO{ID: id}, s.err
}

func (s *stubRetailerService) Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error {
	s.record("delete")
	return s.err
}

func (s *stubRetailerService) UpdateStock(ctx context.Context, caller access.Principal, id uuid.UUID, qty *int) (*product.StockUpdateResult, error) {
	s.record("update_stock")
	s.stockQty = qty
	if qty == nil {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "Stock quantity is required")
	}
	return &product.StockUpdateResult{Message: "Stock updated successfully", StockQuantity: *qty}, s.err
}

func (s *stubRetailerService) Pending(ctx context.Context, caller access.Principal) ([]product.ProductDTO, error) {
	s.record("pending")
	return []product.ProductDTO{}, s.err
}

func (s *stubRetailerService) Approved(ctx context.Context, caller access.Principal) ([]product.ProductDTO, error) {
	s.record("approved")
	return []product.ProductDTO{}, s.err
}

func (s *stubRetailerService) SalesSummary(ctx context.Context, caller access.Principal) (*product.SalesSummary, error) {
	s.record("sales_summary")
	return &product.SalesSummary{TotalProducts: 3, TotalSales: decimal.NewFromInt(40)}, s.err
}

func TestParseStockQuantity(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    *int
		wantErr bool
	}{
		{name: "absent", raw: "", want: nil},
		{name: "null", raw: "null", want: nil},
		{name: "integer", raw: "15", want: intPtr(15)},
		{name: "zero", raw: "0", want: intPtr(0)},
		{name: "negative passes through", raw: "-2", want: intPtr(-2)},
		{name: "numeric string", raw: `"7"`, want: intPtr(7)},
		{name: "fraction", raw: "1.5", wantErr: true},
		{name: "word", raw: `"abc"`, wantErr: true},
		{name: "bool", raw: "true", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseStockQuantity(json.RawMessage(tc.raw))
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRetailerUpdateStock(t *testing.T) {
	svc := &stubRetailerService{}
	rec := call(RetailerUpdateStock(svc, nil), http.MethodPatch, "/", `{"stock_quantity":25}`,
		withParam("productId", uuid.NewString()), asUser(retailer(), "jti"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Stock updated successfully","stock_quantity":25}`, rec.Body.String())
}

func TestRetailerUpdateStockInvalid(t *testing.T) {
	svc := &stubRetailerService{}
	rec := call(RetailerUpdateStock(svc, nil), http.MethodPatch, "/", `{"stock_quantity":"lots"}`,
		withParam("productId", uuid.NewString()), asUser(retailer(), "jti"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidStock, decodeError(t, rec).Error)
	assert.Empty(t, svc.calls)
}

func TestRetailerUpdateStockMissing(t *testing.T) {
	svc := &stubRetailerService{}
	rec := call(RetailerUpdateStock(svc, nil), http.MethodPatch, "/", "",
		withParam("productId", uuid.NewString()), asUser(retailer(), "jti"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Stock quantity is required", decodeError(t, rec).Error)
	assert.Nil(t, svc.stockQty)
}

func TestRetailerListsRouteToTheirService(t *testing.T) {
	svc := &stubRetailerService{}
	caller := asUser(retailer(), "jti")

	call(RetailerProductList(svc, nil), http.MethodGet, "/", "", caller)
	call(RetailerPendingProducts(svc, nil), http.MethodGet, "/", "", caller)
	call(RetailerApprovedProducts(svc, nil), http.MethodGet, "/", "", caller)
	rec := call(RetailerSalesSummary(svc, nil), http.MethodGet, "/", "", caller)

	assert.Equal(t, []string{"list", "pending", "approved", "sales_summary"}, svc.calls)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary product.SalesSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.EqualValues(t, 3, summary.TotalProducts)
}

func TestRetailerProductUpdateModes(t *testing.T) {
	svc := &stubRetailerService{}
	id := uuid.NewString()

	rec := call(RetailerProductUpdate(svc, true, nil), http.MethodPatch, "/", `{"name":"Renamed"}`,
		withParam("productId", id), asUser(retailer(), "jti"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.patch.Name)
	assert.Nil(t, svc.patch.StockQuantity)

	rec = call(RetailerProductUpdate(svc, false, nil), http.MethodPut, "/", `{"name":"Renamed"}`,
		withParam("productId", id), asUser(retailer(), "jti"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "PUT requires the full payload")
}

func TestRetailerNilService(t *testing.T) {
	rec := call(RetailerProductList(nil, nil), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func intPtr(v int) *int {
	return &v
}
