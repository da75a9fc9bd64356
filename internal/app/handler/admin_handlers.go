package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/app/service"
	"github.com/atinyakov/suborg-shortener/internal/models"
)

// AdminHandler serves the /api/admin routes. Callers are checked by
// middleware.RequireAdmin before reaching it.
type AdminHandler struct {
	baseURL string
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewAdmin(baseURL string, s service.URLServiceIface, l *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseURL: baseURL,
		service: s,
		logger:  l,
	}
}

func (h *AdminHandler) ListAll(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	urls, err := h.service.ListAll(ctx)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, toURLResponses(h.baseURL, urls), h.logger)
}

func (h *AdminHandler) Blacklist(res http.ResponseWriter, req *http.Request) {
	h.setBlacklisted(res, req, true)
}

func (h *AdminHandler) Whitelist(res http.ResponseWriter, req *http.Request) {
	h.setBlacklisted(res, req, false)
}

func (h *AdminHandler) setBlacklisted(res http.ResponseWriter, req *http.Request, blacklisted bool) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(req, "id")

	call := h.service.WhitelistURL
	if blacklisted {
		call = h.service.BlacklistURL
	}

	r, err := call(ctx, id)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, toURLResponse(h.baseURL, *r), h.logger)
}

func (h *AdminHandler) Stats(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	stats, err := h.service.GetStats(ctx)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, models.StatsResponse{URLs: stats.URLs, Users: stats.Users}, h.logger)
}
