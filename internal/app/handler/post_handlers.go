package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/app/service"
	"github.com/atinyakov/suborg-shortener/internal/middleware"
	"github.com/atinyakov/suborg-shortener/internal/models"
)

type PostHandler struct {
	baseURL    string
	urlService service.URLServiceIface
	logger     *zap.Logger
}

func NewPost(baseURL string, s service.URLServiceIface, l *zap.Logger) *PostHandler {
	return &PostHandler{
		baseURL:    baseURL,
		urlService: s,
		logger:     l,
	}
}

// Create handles POST /api/url.
func (h *PostHandler) Create(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		http.Error(res, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var request models.CreateRequest
	if err := decodeJSONBody(res, req, &request); err != nil {
		writeDecodeError(res, err, h.logger)
		return
	}

	r, err := h.urlService.Create(ctx, identity, request)
	if err != nil {
		h.logger.Info("create rejected", zap.String("user_id", identity.UserID), zap.Error(err))
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusCreated, toURLResponse(h.baseURL, *r), h.logger)
}

// Rename handles PATCH /api/url.
func (h *PostHandler) Rename(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		http.Error(res, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var request models.RenameRequest
	if err := decodeJSONBody(res, req, &request); err != nil {
		writeDecodeError(res, err, h.logger)
		return
	}

	r, err := h.urlService.Rename(ctx, identity.UserID, request.ID, models.CategoryScope(request.Suborg), request.Endpoint)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, toURLResponse(h.baseURL, *r), h.logger)
}

// CreateCategory handles POST /api/suborg.
func (h *PostHandler) CreateCategory(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		http.Error(res, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var request models.CategoryRequest
	if err := decodeJSONBody(res, req, &request); err != nil {
		writeDecodeError(res, err, h.logger)
		return
	}

	c, err := h.urlService.CreateCategory(ctx, identity, request.Name)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusCreated, models.CategoryResponse{Name: c.Name, URLCount: c.URLCount}, h.logger)
}
