// Package app assembles the HTTP router from config, middleware and handlers.
package app

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/hrselector/backend/internal/adapter/httpserver"
	"github.com/hrselector/backend/internal/adapter/observability"
	"github.com/hrselector/backend/internal/config"
	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/internal/service/ratelimiter"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// AuthBucket is the limiter bucket guarding credential endpoints.
const AuthBucket = "auth"

// BuildRouter constructs the HTTP handler with all middlewares and routes.
// limiter may be nil; credential endpoints then rely on the per-IP limit only.
func BuildRouter(cfg config.Config, srv *httpserver.Server, limiter ratelimiter.Limiter) http.Handler {
	r := chi.NewRouter()
	// Security & instrumentation middleware
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Credential endpoints get a tighter budget: per-IP token bucket backed by
	// Redis on top of the in-process limit.
	r.Group(func(ar chi.Router) {
		ar.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		ar.Use(authRateLimit(limiter))
		ar.Post("/v1/auth/register", srv.RegisterHandler())
		ar.Post("/v1/auth/login", srv.LoginHandler())
	})

	// Authenticated API
	r.Group(func(pr chi.Router) {
		pr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		pr.Use(srv.Tokens.RequireAuth)

		pr.Post("/v1/cvs", srv.UploadCVHandler())
		pr.Get("/v1/cvs/{id}", srv.GetCVHandler())
		pr.Get("/v1/cvs/{id}/download", srv.DownloadCVHandler())
		pr.Post("/v1/cvs/{id}/primary", srv.SetPrimaryHandler())

		// Recruiter surface
		pr.Group(func(rr chi.Router) {
			rr.Use(httpserver.RequireRoles(domain.RoleAdmin, domain.RoleRecruiter))
			rr.Get("/v1/cvs/count", srv.CVCountHandler())
			rr.Get("/v1/candidates/{id}", srv.CandidateProfileHandler())
			rr.Post("/v1/ranking", srv.RankingHandler())
		})
	})

	// Health and metrics
	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}

// authRateLimit applies the Redis token bucket to credential endpoints keyed
// by client IP. A nil limiter disables the check.
func authRateLimit(limiter ratelimiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			allowed, retryAfter, _ := limiter.Allow(r.Context(), AuthBucket, ip)
			if !allowed {
				if retryAfter > 0 {
					secs := int(retryAfter / time.Second)
					if retryAfter%time.Second > 0 {
						secs++
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"too many attempts","details":null}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
