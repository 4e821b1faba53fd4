package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/retailhive/retailhive-backend/api/responses"
	"github.com/retailhive/retailhive-backend/api/validators"
	"github.com/retailhive/retailhive-backend/internal/access"
	product "github.com/retailhive/retailhive-backend/internal/products"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
	"github.com/retailhive/retailhive-backend/pkg/logger"
)

const msgInvalidStock = "Invalid stock quantity"

type stockUpdateRequest struct {
	StockQuantity json.RawMessage `json:"stock_quantity"`
}

type productLister func(ctx context.Context, caller access.Principal) ([]product.ProductDTO, error)

func RetailerProductList(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return listProducts(svc.List, logg)
}

func RetailerPendingProducts(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return listProducts(svc.Pending, logg)
}

func RetailerApprovedProducts(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return listProducts(svc.Approved, logg)
}

func RetailerProductDetail(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), access.FromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func RetailerProductCreate(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body product.ProductInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Create(r.Context(), access.FromContext(r.Context()), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// RetailerProductUpdate handles PUT (full) and PATCH (partial) on the
// caller's own product.
func RetailerProductUpdate(svc product.RetailerService, partial bool, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var patch product.ProductPatch
		if partial {
			err = validators.DecodeOptionalJSONBody(r, &patch)
		} else {
			var body product.ProductInput
			err = validators.DecodeJSONBody(r, &body)
			patch = body.Patch()
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Update(r.Context(), access.FromContext(r.Context()), id, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func RetailerProductDelete(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), access.FromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RetailerUpdateStock accepts an integer or an integer string; anything else
// is rejected before the service sees it.
func RetailerUpdateStock(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body stockUpdateRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty, err := parseStockQuantity(body.StockQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.UpdateStock(r.Context(), access.FromContext(r.Context()), id, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func RetailerSalesSummary(svc product.RetailerService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return retailerUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.SalesSummary(r.Context(), access.FromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// parseStockQuantity returns nil for a missing or null value.
func parseStockQuantity(raw json.RawMessage) (*int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgInvalidStock)
	}
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgInvalidStock)
		}
		qty := int(v)
		return &qty, nil
	case string:
		qty, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgInvalidStock)
		}
		return &qty, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgInvalidStock)
	}
}

func listProducts(list productLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := list(r.Context(), access.FromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func retailerUnavailable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retailer service unavailable"))
	}
}
