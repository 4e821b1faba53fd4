package controllers

import (
	"net/http"

	"github.com/retailhive/retailhive-backend/api/responses"
	"github.com/retailhive/retailhive-backend/api/validators"
	"github.com/retailhive/retailhive-backend/internal/access"
	product "github.com/retailhive/retailhive-backend/internal/products"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
	"github.com/retailhive/retailhive-backend/pkg/logger"
)

type rejectRequest struct {
	Reason string `json:"reason"`
}

func AdminProductList(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return listProducts(svc.List, logg)
}

func AdminPendingProducts(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return listProducts(svc.Pending, logg)
}

func AdminApproveProduct(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Approve(r.Context(), access.FromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminRejectProduct takes an optional {reason}; a blank reason falls back to
// the default text.
func AdminRejectProduct(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body rejectRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Reject(r.Context(), access.FromContext(r.Context()), id, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminBulkApprove(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body product.BulkInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BulkApprove(r.Context(), access.FromContext(r.Context()), body.ProductIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminBulkReject(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body product.BulkInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BulkReject(r.Context(), access.FromContext(r.Context()), body.ProductIDs, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminDashboardStats(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.DashboardStats(r.Context(), access.FromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func AdminRetailerProducts(svc product.AdminService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return adminUnavailable(logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.RetailerProducts(r.Context(), access.FromContext(r.Context()), r.URL.Query().Get("retailer_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func adminUnavailable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
	}
}
