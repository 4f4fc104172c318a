package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resolveThroughMiddleware(t *testing.T, configure func(r *http.Request)) string {
	t.Helper()
	var got string
	h := ClientIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	configure(req)
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIPFromForwardedFor(t *testing.T) {
	got := resolveThroughMiddleware(t, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	})
	assert.Equal(t, "203.0.113.9", got)
}

func TestClientIPFromRealIP(t *testing.T) {
	got := resolveThroughMiddleware(t, func(r *http.Request) {
		r.Header.Set("X-Real-IP", "198.51.100.7")
	})
	assert.Equal(t, "198.51.100.7", got)
}

func TestClientIPFromRemoteAddr(t *testing.T) {
	got := resolveThroughMiddleware(t, func(r *http.Request) {})
	assert.Equal(t, "10.0.0.1", got)
}
