package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"voyago/internal/config"

	"github.com/stretchr/testify/assert"
)

func authConfig(rps float64, burst int) config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "full", Extra: "secret", Name: "full"},
				{Key: "readonly", Extra: "secret", Name: "readonly", Permissions: []string{"read:availability", "read:bookings"}},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: rps, Burst: burst},
	}
}

func serveAuth(auth *HTTPAuth, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTPAuthWrap(t *testing.T) {
	t.Run("DisabledPassesThrough", func(t *testing.T) {
		cfg := authConfig(0, 0)
		cfg.Enabled = false
		auth := NewHTTPAuth(cfg)
		rec := serveAuth(auth, http.MethodGet, "/api/v1/resources", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		auth := NewHTTPAuth(authConfig(0, 0))
		rec := serveAuth(auth, http.MethodGet, "/api/v1/resources", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("WrongExtra", func(t *testing.T) {
		auth := NewHTTPAuth(authConfig(0, 0))
		rec := serveAuth(auth, http.MethodGet, "/api/v1/resources", map[string]string{
			"x-api-key": "full", "x-api-extra": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("FullKeyAllowed", func(t *testing.T) {
		auth := NewHTTPAuth(authConfig(0, 0))
		rec := serveAuth(auth, http.MethodPost, "/api/v1/bookings", map[string]string{
			"x-api-key": "full", "x-api-extra": "secret",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ScopedKeyWithinScope", func(t *testing.T) {
		auth := NewHTTPAuth(authConfig(0, 0))
		rec := serveAuth(auth, http.MethodGet, "/api/v1/bookings/5", map[string]string{
			"x-api-key": "readonly", "x-api-extra": "secret",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ScopedKeyOutsideScope", func(t *testing.T) {
		auth := NewHTTPAuth(authConfig(0, 0))
		rec := serveAuth(auth, http.MethodPost, "/api/v1/bookings", map[string]string{
			"x-api-key": "readonly", "x-api-extra": "secret",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRequiredPermissionHTTP(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/availability/1", "read:availability"},
		{http.MethodPost, "/api/v1/availability/bulk", "read:availability"},
		{http.MethodGet, "/api/v1/resources", "read:resources"},
		{http.MethodPost, "/api/v1/coupons/validate", "read:coupons"},
		{http.MethodGet, "/api/v1/reports/occupancy", "read:reports"},
		{http.MethodPost, "/api/v1/coupons", "write:coupons"},
		{http.MethodGet, "/api/v1/bookings/7", "read:bookings"},
		{http.MethodGet, "/api/v1/users/100/bookings", "read:bookings"},
		{http.MethodPost, "/api/v1/bookings", "write:bookings"},
		{http.MethodPost, "/api/v1/bookings/7/transition", "write:bookings"},
		{http.MethodPost, "/api/v1/tours/3/end", "write:bookings"},
		{http.MethodGet, "/api/v1/groups/5/members", "read:groups"},
		{http.MethodPost, "/api/v1/groups/5/join", "write:groups"},
		{http.MethodGet, "/metrics", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		assert.Equal(t, tc.want, requiredPermissionHTTP(req), "%s %s", tc.method, tc.path)
	}
}

func TestRateLimit(t *testing.T) {
	auth := NewHTTPAuth(authConfig(1, 2))
	headers := map[string]string{"x-api-key": "full", "x-api-extra": "secret"}

	for i := 0; i < 2; i++ {
		rec := serveAuth(auth, http.MethodGet, "/api/v1/resources", headers)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serveAuth(auth, http.MethodGet, "/api/v1/resources", headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different key has its own bucket
	auth.cfg.Auth.APIKeys = append(auth.cfg.Auth.APIKeys, config.APIClientKey{Key: "other", Extra: "secret"})
	auth.clients["other"] = config.APIClientKey{Key: "other", Extra: "secret"}
	rec = serveAuth(auth, http.MethodGet, "/api/v1/resources", map[string]string{
		"x-api-key": "other", "x-api-extra": "secret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}
