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

type DeleteHandler struct {
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewDelete(s service.URLServiceIface, l *zap.Logger) *DeleteHandler {
	return &DeleteHandler{
		service: s,
		logger:  l,
	}
}

// Delete handles DELETE /api/url. Only a record matching id, caller and
// suborg together is removed.
func (h *DeleteHandler) Delete(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		http.Error(res, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var request models.DeleteRequest
	if err := decodeJSONBody(res, req, &request); err != nil {
		writeDecodeError(res, err, h.logger)
		return
	}

	if _, err := h.service.Delete(ctx, identity.UserID, request.ID, models.CategoryScope(request.Suborg)); err != nil {
		writeError(res, err, h.logger)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}
