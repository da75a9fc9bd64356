// Package handler is the thin HTTP adapter over the URL service: it decodes
// requests, calls the service and maps rejection kinds to status codes.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
	"github.com/atinyakov/suborg-shortener/internal/models"
	"github.com/atinyakov/suborg-shortener/internal/storage"
)

// malformedRequest represents an error with a malformed HTTP request.
type malformedRequest struct {
	status int
	msg    string
}

func (mr *malformedRequest) Error() string {
	return mr.msg
}

// decodeJSONBody decodes a single JSON object from the request body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
		if mediaType != "application/json" {
			msg := "Content-Type header is not application/json"
			return &malformedRequest{status: http.StatusUnsupportedMediaType, msg: msg}
		}
	}

	// Limit the size of the request body to 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			msg := "Request body contains badly-formed JSON"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.EOF):
			msg := "Request body must not be empty"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.As(err, &maxBytesError):
			msg := "Request body must not be larger than 1MB"
			return &malformedRequest{status: http.StatusRequestEntityTooLarge, msg: msg}

		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		msg := "Request body must only contain a single JSON object"
		return &malformedRequest{status: http.StatusBadRequest, msg: msg}
	}

	return nil
}

// writeDecodeError answers a request whose body could not be decoded.
func writeDecodeError(res http.ResponseWriter, err error, logger *zap.Logger) {
	var mr *malformedRequest
	if errors.As(err, &mr) {
		http.Error(res, mr.msg, mr.status)
		return
	}

	logger.Error("cannot decode request body", zap.Error(err))
	http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// statusFor maps a rejection kind to an HTTP status.
func statusFor(kind internalerrors.Kind) int {
	switch kind {
	case internalerrors.KindForbidden:
		return http.StatusForbidden
	case internalerrors.KindInvalidDestination, internalerrors.KindInvalidAlias, internalerrors.KindReserved:
		return http.StatusBadRequest
	case internalerrors.KindAlreadyExists:
		return http.StatusConflict
	case internalerrors.KindNotFound:
		return http.StatusNotFound
	case internalerrors.KindAllocationExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status and body matching err's kind.
func writeError(res http.ResponseWriter, err error, logger *zap.Logger) {
	kind := internalerrors.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		if kind == "" {
			kind = internalerrors.KindStorage
		}
	}

	writeJSON(res, status, models.ErrorResponse{
		Kind:    string(kind),
		Message: internalerrors.ReasonOf(err),
	}, logger)
}

func writeJSON(res http.ResponseWriter, status int, v any, logger *zap.Logger) {
	response, err := json.Marshal(v)
	if err != nil {
		logger.Error("cannot encode response", zap.Error(err))
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)

	if _, err := res.Write(response); err != nil {
		logger.Error("cannot write response", zap.Error(err))
	}
}

func toURLResponse(baseURL string, r storage.URLRecord) models.URLResponse {
	resp := models.URLResponse{
		ID:          r.ID,
		ShortURL:    baseURL + "/" + r.Short,
		Endpoint:    r.Short,
		OriginalURL: r.Original,
		Suborg:      r.Suborg,
		Hits:        r.Hits,
		Blacklisted: r.Blacklisted,
		CreatedAt:   r.CreatedAt,
	}
	if !r.LastHitAt.IsZero() {
		lastHit := r.LastHitAt
		resp.LastHitAt = &lastHit
	}
	return resp
}

func toURLResponses(baseURL string, rs []storage.URLRecord) []models.URLResponse {
	out := make([]models.URLResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toURLResponse(baseURL, r))
	}
	return out
}
