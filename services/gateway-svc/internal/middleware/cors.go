package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"siting/pkg/config"
)

// connectHeaders заголовки, без которых браузерный connect клиент не работает
var connectHeaders = []string{
	"Content-Type",
	"Connect-Protocol-Version",
	"Connect-Timeout-Ms",
	"Grpc-Timeout",
	"X-Grpc-Web",
	"X-User-Agent",
	RequestIDHeader,
}

// connectExposed заголовки ответа, которые видит браузер
var connectExposed = []string{
	"Grpc-Status",
	"Grpc-Message",
	"Grpc-Status-Details-Bin",
	RequestIDHeader,
	"X-Error-Code",
	"X-Error-Field",
	"X-Ratelimit-Limit",
	"X-Ratelimit-Remaining",
	"X-Ratelimit-Reset",
}

// CORS middleware для ConnectRPC
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	allowedHeaders := prepareHeaders(cfg.AllowedHeaders, connectHeaders)
	exposedHeaders := prepareHeaders(cfg.ExposedHeaders, connectExposed)
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	if allowedMethods == "" {
		allowedMethods = "GET, POST, OPTIONS"
	}
	maxAge := strconv.Itoa(cfg.MaxAge)
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case wildcard && !cfg.AllowCredentials:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case wildcard || slices.Contains(cfg.AllowedOrigins, origin):
				// С credentials браузер не принимает "*"
				w.Header().Set("Access-Control-Allow-Origin", origin)
			default:
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)

			// Preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// prepareHeaders дополняет настроенный список обязательными заголовками.
// "*" заменяется обязательным списком.
func prepareHeaders(configured, required []string) string {
	out := make([]string, 0, len(configured)+len(required))
	for _, h := range configured {
		if h == "*" {
			continue
		}
		out = append(out, h)
	}
	for _, h := range required {
		if !slices.ContainsFunc(out, func(s string) bool { return strings.EqualFold(s, h) }) {
			out = append(out, h)
		}
	}
	return strings.Join(out, ", ")
}
