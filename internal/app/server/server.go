// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/app/handler"
	"github.com/atinyakov/suborg-shortener/internal/app/service"
	"github.com/atinyakov/suborg-shortener/internal/middleware"
)

// Init builds the router. rateLimit throttles URL creation per caller and
// may be empty to disable throttling.
func Init(baseURL string, logger *zap.Logger, s service.URLServiceIface, rateLimit string) (*chi.Mux, error) {
	postHandler := handler.NewPost(baseURL, s, logger)
	getHandler := handler.NewGet(baseURL, s, logger)
	deleteHandler := handler.NewDelete(s, logger)
	adminHandler := handler.NewAdmin(baseURL, s, logger)

	limit := func(next http.Handler) http.Handler { return next }
	if rateLimit != "" {
		var err error
		limit, err = middleware.WithRateLimit(rateLimit)
		if err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.WithIdentity)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.WithGzip)

	r.Get("/ping", getHandler.PingDB)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity)

			r.With(limit).Post("/url", postHandler.Create)
			r.Get("/url", getHandler.List)
			r.Patch("/url", postHandler.Rename)
			r.Delete("/url", deleteHandler.Delete)

			r.Post("/suborg", postHandler.CreateCategory)
			r.Get("/suborg", getHandler.ListCategories)

			r.Get("/user", getHandler.Profile)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/url", adminHandler.ListAll)
			r.Patch("/url/{id}/blacklist", adminHandler.Blacklist)
			r.Patch("/url/{id}/whitelist", adminHandler.Whitelist)
			r.Get("/stats", adminHandler.Stats)
		})
	})

	r.Get("/{alias}", getHandler.Redirect)
	r.Get("/{suborg}/{alias}", getHandler.Redirect)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Short URL is required", http.StatusBadRequest)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r, nil
}
