package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/internal/categories"
	product "github.com/retailhive/retailhive-backend/internal/products"
	pkgAuth "github.com/retailhive/retailhive-backend/pkg/auth"
	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubRedis struct {
	stubPinger
	counts map[string]int64
}

func (s *stubRedis) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[key]++
	return s.counts[key], nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "", "", errors.New("not used")
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	return nil
}

type stubProductService struct {
	product.Service
	listed bool
}

func (s *stubProductService) List(ctx context.Context, categoryID *uuid.UUID) ([]product.ProductDTO, error) {
	s.listed = true
	return []product.ProductDTO{}, nil
}

func (s *stubProductService) Search(ctx context.Context, q string) ([]product.ProductDTO, error) {
	return []product.ProductDTO{{Name: q}}, nil
}

func (s *stubProductService) Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error {
	return nil
}

type stubAdminService struct {
	product.AdminService
}

func (stubAdminService) Pending(ctx context.Context, caller access.Principal) ([]product.ProductDTO, error) {
	return []product.ProductDTO{}, nil
}

type stubCategoryService struct {
	categories.Service
}

func (stubCategoryService) List(ctx context.Context) ([]categories.CategoryDTO, error) {
	return []categories.CategoryDTO{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "retailhive", ExpirationMinutes: 60},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:        time.Minute,
			LoginIPLimit:       2,
			LoginIdentityLimit: 10,
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "router-test", Level: logger.ParseLevel("error"), Output: io.Discard})
}

func newTestRouter(t *testing.T, deps Dependencies) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	if deps.Sessions == nil {
		deps.Sessions = stubSessionManager{}
	}
	return NewRouter(cfg, testLogger(), deps), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role, staff bool) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:  uuid.New(),
		Role:    role,
		IsStaff: staff,
		JTI:     "session",
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func do(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPublicCatalogIsAnonymous(t *testing.T) {
	products := &stubProductService{}
	h, _ := newTestRouter(t, Dependencies{Products: products, Category: stubCategoryService{}})

	rec := do(h, http.MethodGet, "/api/products/products/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, products.listed)

	rec = do(h, http.MethodGet, "/api/products/products/search/?q=drill", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "drill")

	rec = do(h, http.MethodGet, "/api/products/categories", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductWritesNeedCredentials(t *testing.T) {
	h, cfg := newTestRouter(t, Dependencies{Products: &stubProductService{}})
	path := "/api/products/products/" + uuid.NewString() + "/"

	rec := do(h, http.MethodDelete, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication credentials were not provided.")

	rec = do(h, http.MethodDelete, path, bearer(t, cfg, enums.RoleRetailer, false), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminRoutesRequireAdminOrStaff(t *testing.T) {
	h, cfg := newTestRouter(t, Dependencies{Admin: stubAdminService{}})
	path := "/api/products/admin/products/pending_approval/"

	rec := do(h, http.MethodGet, path, bearer(t, cfg, enums.RoleCustomer, false), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You do not have permission to perform this action.")

	rec = do(h, http.MethodGet, path, bearer(t, cfg, enums.RoleAdmin, false), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, path, bearer(t, cfg, enums.RoleCustomer, true), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetailerRoutesRejectCustomers(t *testing.T) {
	h, cfg := newTestRouter(t, Dependencies{})

	rec := do(h, http.MethodGet, "/api/products/retailer/products/sales_summary/", bearer(t, cfg, enums.RoleCustomer, false), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCartRequiresAuth(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{})

	rec := do(h, http.MethodGet, "/api/orders/cart/", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{Redis: &stubRedis{}})
	body := `{"username":"shopper","password":"pw"}`

	for i := 0; i < 2; i++ {
		rec := do(h, http.MethodPost, "/api/users/login/", "", body)
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
	rec := do(h, http.MethodPost, "/api/users/login/", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, _ := newTestRouter(t, Dependencies{
		DB:       stubPinger{},
		Redis:    &stubRedis{},
		Metrics:  metrics.NewHTTPMetrics(reg),
		Gatherer: reg,
	})

	rec := do(h, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/health/ready")
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{DB: stubPinger{err: errors.New("down")}, Redis: &stubRedis{}})

	rec := do(h, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
