package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/suborg-shortener/internal/models"
)

func TestWithRateLimit(t *testing.T) {
	limit, err := WithRateLimit("2-M")
	require.NoError(t, err)

	handler := limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	do := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/url", nil)
		req = InjectIdentity(req, models.Identity{UserID: userID})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, do("u1").Code)
	assert.Equal(t, http.StatusCreated, do("u1").Code)

	rec := do("u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body.Kind)

	// other callers have their own budget
	assert.Equal(t, http.StatusCreated, do("u2").Code)
}

func TestWithRateLimit_BadFormat(t *testing.T) {
	_, err := WithRateLimit("lots")
	assert.Error(t, err)
}
