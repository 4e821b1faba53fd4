package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
	"github.com/retailhive/retailhive-backend/pkg/types"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func loginRequest(body, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/users/login/", strings.NewReader(body))
	req.RemoteAddr = remote
	return req
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) })
}

func TestAuthRateLimitKeepsBodyReadable(t *testing.T) {
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 5, PerIdentity: 5}
	handler := AuthRateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"email":"Shopper@Example.com","password":"pw"}`, string(body))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{"email":"Shopper@Example.com","password":"pw"}`, "1.2.3.4:5678"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimitIdentityAcrossIPs(t *testing.T) {
	store := newFakeRateStore()
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, PerIdentity: 2}
	handler := AuthRateLimit(policy, store, nil)(statusHandler(http.StatusOK))

	codes := make([]int, 0, 3)
	for i, remote := range []string{"1.1.1.1:1", "2.2.2.2:2", "3.3.3.3:3"} {
		// case and whitespace do not split the identity counter
		body := `{"username":"blocked"}`
		if i == 1 {
			body = `{"username":"  BLOCKED "}`
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(body, remote))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			var payload types.ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Code)
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Len(t, store.counts, 1)
	assert.Contains(t, store.counts, "rl:identity:login:"+digest("blocked"))
}

func TestAuthRateLimitUsesFirstForwardedHop(t *testing.T) {
	store := newFakeRateStore()
	policy := RateLimitPolicy{Name: "Register", Window: time.Minute, PerIP: 1}
	handler := AuthRateLimit(policy, store, nil)(statusHandler(http.StatusOK))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/users/register/", strings.NewReader(`{"email":"foo@example.com"}`))
		req.Header.Set("X-Forwarded-For", "5.6.7.8, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, int64(2), store.counts["rl:ip:register:5.6.7.8"])
}

func TestAuthRateLimitStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	policy := RateLimitPolicy{Window: time.Minute, PerIP: 1}
	handler := AuthRateLimit(policy, store, nil)(statusHandler(http.StatusOK))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{}`, "9.9.9.9:1"))
	assert.Equal(t, pkgerrors.MetadataFor(pkgerrors.CodeDependency).HTTPStatus, rec.Code)
}

func TestAuthRateLimitInactivePolicyPassesThrough(t *testing.T) {
	for _, policy := range []RateLimitPolicy{
		{Name: "login", PerIP: 1, PerIdentity: 1},
		{Name: "login", Window: time.Minute},
	} {
		handler := AuthRateLimit(policy, newFakeRateStore(), nil)(statusHandler(http.StatusNoContent))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestClientIPFallsBackToRealIPAndSocket(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:443"
	assert.Equal(t, "10.1.1.1", clientIP(req))

	req.Header.Set("X-Real-IP", " 7.7.7.7 ")
	assert.Equal(t, "7.7.7.7", clientIP(req))
}
