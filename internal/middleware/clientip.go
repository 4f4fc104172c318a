package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

const ClientIPContextKey = contextKey("client_ip")

// ClientIPFromContext returns the resolved client address. Handlers that
// touch quota or IP blocking read the address from here, never from the
// raw request.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPContextKey).(string)
	return ip
}

// ClientIPMiddleware resolves the originating client address. Behind a
// proxy the first X-Forwarded-For hop is the client; otherwise the
// connection's remote address is used.
func ClientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := resolveClientIP(r)
		ctx := context.WithValue(r.Context(), ClientIPContextKey, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func resolveClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
