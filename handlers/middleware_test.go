package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	called := false
	h := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for key, want := range expectedHeaders {
		assert.Equal(t, want, rr.Header().Get(key), key)
	}

	csp := rr.Header().Get("Content-Security-Policy")
	for _, directive := range []string{
		"default-src 'self'",
		"script-src 'self'",
		"form-action 'self'",
		"frame-ancestors 'self'",
	} {
		assert.Contains(t, csp, directive)
	}

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCacheControlHeaders(t *testing.T) {
	h := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/index", nil))
	assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/static/style.css", nil))
	assert.NotContains(t, rr.Header().Get("Cache-Control"), "no-store")
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/index"},
		{"/add_user", "/add_user"},
		{"/edit_user/3?x=1", "/edit_user/3?x=1"},
		{"https://evil.example/", "/index"},
		{"//evil.example/", "/index"},
		{"/\\evil.example", "/index"},
		{"index", "/index"},
		{"/\t/evil.example", "/index"},
		{"/\n/evil.example", "/index"},
		{"/\r/evil.example", "/index"},
		{"/\x00/evil.example", "/index"},
		{"/%zz", "/index"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, safeNext(test.next), test.next)
	}
}
