// Package router sets up all HTTP routes and middleware chains for the
// taxonomy API. Routes are organized into public and admin groups with
// appropriate middleware stacks.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"classifieds/internal/handlers"
	"classifieds/internal/metrics"
	"classifieds/internal/middleware"
)

// Deps carries everything the router wires together.
type Deps struct {
	Taxonomy *handlers.Taxonomy
	// Health defaults to a handler with no dependency checks.
	Health http.Handler
	// Metrics is optional; without it /metrics is not mounted.
	Metrics *metrics.Collector
	// AdminTokenHash is the bcrypt hash guarding /api/admin.
	AdminTokenHash string
	// AdminLimiter is optional.
	AdminLimiter *middleware.RateLimiter
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware: applied to every request.
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(middleware.Observe(d.Metrics))
	} else {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.SecureHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed)
	})

	health := d.Health
	if health == nil {
		health = handlers.NewHealth(nil)
	}
	r.Method(http.MethodGet, "/health", health)

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	t := d.Taxonomy

	r.Route("/api", func(r chi.Router) {
		// Admin: bearer token, rate limited, never cached.
		r.Route("/admin", func(r chi.Router) {
			if d.AdminLimiter != nil {
				r.Use(d.AdminLimiter.Middleware)
			}
			r.Use(middleware.RequireAdminToken(d.AdminTokenHash))
			r.Use(middleware.NoStore)

			r.Get("/cache-log", t.CacheLog)

			r.Route("/{domain}", func(r chi.Router) {
				r.Get("/tree", t.AdminTree)
				r.Post("/", t.Create)
				r.Post("/reorder", t.Reorder)
				r.Post("/cache/clear", t.ClearCache)
				r.Patch("/{id}", t.Update)
				r.Delete("/{id}", t.Delete)
				r.Post("/{id}/move", t.Move)
				r.Get("/{id}/meta", t.AdminMeta)
			})
		})

		// Public: active nodes only.
		r.Route("/{domain}", func(r chi.Router) {
			r.Get("/tree", t.Tree)
			r.Get("/children", t.Children)
			r.Get("/options", t.Options)
			r.Get("/{id}/breadcrumb", t.Breadcrumb)
			r.Get("/{id}/path", t.Path)
			r.Get("/{id}/meta", t.Meta)
		})
	})

	return r
}

// writeStatus answers with the standard JSON error envelope for status.
func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + http.StatusText(status) + `"}`))
}
