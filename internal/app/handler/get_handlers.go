package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/app/service"
	"github.com/atinyakov/suborg-shortener/internal/middleware"
	"github.com/atinyakov/suborg-shortener/internal/models"
)

type GetHandler struct {
	baseURL string
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewGet(baseURL string, s service.URLServiceIface, l *zap.Logger) *GetHandler {
	return &GetHandler{
		baseURL: baseURL,
		service: s,
		logger:  l,
	}
}

// Redirect handles GET /{alias} and GET /{suborg}/{alias}.
func (h *GetHandler) Redirect(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	scope := models.CategoryScope(chi.URLParam(req, "suborg"))
	endpoint := scope.Endpoint(chi.URLParam(req, "alias"))

	original, ok, err := h.service.Resolve(ctx, endpoint)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}
	if !ok {
		http.Error(res, "URL not found", http.StatusNotFound)
		return
	}

	if err := h.service.RecordHit(ctx, endpoint); err != nil {
		h.logger.Warn("cannot record hit", zap.String("endpoint", endpoint), zap.Error(err))
	}

	res.Header().Set("Location", original)
	res.WriteHeader(http.StatusTemporaryRedirect)
}

func (h *GetHandler) PingDB(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()
	if err := h.service.PingContext(ctx); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

// List handles GET /api/url?suborg=name.
func (h *GetHandler) List(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		http.Error(res, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	scope := models.CategoryScope(req.URL.Query().Get("suborg"))

	urls, err := h.service.List(ctx, identity.UserID, scope)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	if len(urls) == 0 {
		res.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(res, http.StatusOK, toURLResponses(h.baseURL, urls), h.logger)
}

// ListCategories handles GET /api/suborg.
func (h *GetHandler) ListCategories(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		http.Error(res, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	cs, err := h.service.ListCategories(ctx, identity.UserID)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	if len(cs) == 0 {
		res.WriteHeader(http.StatusNoContent)
		return
	}

	out := make([]models.CategoryResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, models.CategoryResponse{Name: c.Name, URLCount: c.URLCount})
	}
	writeJSON(res, http.StatusOK, out, h.logger)
}

// Profile handles GET /api/user.
func (h *GetHandler) Profile(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		http.Error(res, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetUser(ctx, identity.UserID)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, models.UserResponse{ID: u.ID, URLCount: u.URLCount}, h.logger)
}
