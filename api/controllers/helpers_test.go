package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/types"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "retailhive", ExpirationMinutes: 60}

type requestOption func(*http.Request) *http.Request

func asUser(p access.Principal, accessID string) requestOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(access.WithPrincipal(r.Context(), p, accessID))
	}
}

func withParam(key, value string) requestOption {
	return func(r *http.Request) *http.Request {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			rctx = chi.NewRouteContext()
		}
		rctx.URLParams.Add(key, value)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
}

func call(h http.Handler, method, target, body string, opts ...requestOption) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for _, opt := range opts {
		req = opt(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorBody {
	t.Helper()
	var body types.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func customer() access.Principal {
	return access.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
}

func retailer() access.Principal {
	return access.Principal{UserID: uuid.New(), Role: enums.RoleRetailer}
}

func admin() access.Principal {
	return access.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}
}
