package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
	"github.com/atinyakov/suborg-shortener/internal/middleware"
	"github.com/atinyakov/suborg-shortener/internal/mocks"
	"github.com/atinyakov/suborg-shortener/internal/models"
	"github.com/atinyakov/suborg-shortener/internal/storage"
)

func createTestHandler(t *testing.T) (*GetHandler, *mocks.MockURLServiceIface) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockURLServiceIface(ctrl)
	return NewGet(baseURL, mockService, zap.NewNop()), mockService
}

// muxRequestWithParams simulates chi's URLParam extraction
func muxRequestWithParams(r *http.Request, params map[string]string) *http.Request {
	tctx := chi.NewRouteContext()
	for k, v := range params {
		tctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, tctx))
}

func TestRedirect(t *testing.T) {
	tests := []struct {
		name         string
		params       map[string]string
		endpoint     string
		original     string
		found        bool
		resolveErr   error
		hitErr       error
		expectHit    bool
		expectedCode int
	}{
		{
			name:         "root hit",
			params:       map[string]string{"alias": "abc123"},
			endpoint:     "abc123",
			original:     "https://example.com",
			found:        true,
			expectHit:    true,
			expectedCode: http.StatusTemporaryRedirect,
		},
		{
			name:         "suborg hit",
			params:       map[string]string{"suborg": "acme", "alias": "foo"},
			endpoint:     "acme/foo",
			original:     "https://acme.example.com",
			found:        true,
			expectHit:    true,
			expectedCode: http.StatusTemporaryRedirect,
		},
		{
			name:         "hit counting failure still redirects",
			params:       map[string]string{"alias": "abc123"},
			endpoint:     "abc123",
			original:     "https://example.com",
			found:        true,
			expectHit:    true,
			hitErr:       internalerrors.ErrStorage,
			expectedCode: http.StatusTemporaryRedirect,
		},
		{
			name:         "miss",
			params:       map[string]string{"alias": "nope"},
			endpoint:     "nope",
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "store down",
			params:       map[string]string{"alias": "abc123"},
			endpoint:     "abc123",
			resolveErr:   internalerrors.Wrap(internalerrors.KindStorage, "something went wrong, please try again", errors.New("down")),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mockService := createTestHandler(t)

			mockService.EXPECT().Resolve(gomock.Any(), tt.endpoint).Return(tt.original, tt.found, tt.resolveErr)
			if tt.expectHit {
				mockService.EXPECT().RecordHit(gomock.Any(), tt.endpoint).Return(tt.hitErr)
			}

			req := muxRequestWithParams(httptest.NewRequest(http.MethodGet, "/x", nil), tt.params)
			w := httptest.NewRecorder()
			h.Redirect(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.found {
				assert.Equal(t, tt.original, w.Header().Get("Location"))
			}
		})
	}
}

func TestPingDB(t *testing.T) {
	tests := []struct {
		name         string
		mockError    error
		expectedCode int
	}{
		{name: "DB is reachable", expectedCode: http.StatusOK},
		{name: "DB is unreachable", mockError: errors.New("database unreachable"), expectedCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mockService := createTestHandler(t)
			mockService.EXPECT().PingContext(gomock.Any()).Return(tt.mockError)

			w := httptest.NewRecorder()
			h.PingDB(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestList(t *testing.T) {
	hit := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	t.Run("records in suborg", func(t *testing.T) {
		h, mockService := createTestHandler(t)
		mockService.EXPECT().List(gomock.Any(), "test-user-id", models.CategoryScope("acme")).
			Return([]storage.URLRecord{
				{ID: "1", Short: "acme/a", Suborg: "acme", Original: "https://a.com", Hits: 2, LastHitAt: hit},
				{ID: "2", Short: "acme/b", Suborg: "acme", Original: "https://b.com", Blacklisted: true},
			}, nil)

		req := middleware.InjectIdentity(httptest.NewRequest(http.MethodGet, "/api/url?suborg=acme", nil), testUser)
		w := httptest.NewRecorder()
		h.List(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body []models.URLResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body, 2)
		assert.Equal(t, baseURL+"/acme/a", body[0].ShortURL)
		require.NotNil(t, body[0].LastHitAt)
		assert.True(t, hit.Equal(*body[0].LastHitAt))
		assert.True(t, body[1].Blacklisted)
	})

	t.Run("empty root", func(t *testing.T) {
		h, mockService := createTestHandler(t)
		mockService.EXPECT().List(gomock.Any(), "test-user-id", models.RootScope()).Return([]storage.URLRecord{}, nil)

		req := middleware.InjectIdentity(httptest.NewRequest(http.MethodGet, "/api/url", nil), testUser)
		w := httptest.NewRecorder()
		h.List(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		h, _ := createTestHandler(t)

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/api/url", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestListCategories(t *testing.T) {
	h, mockService := createTestHandler(t)
	mockService.EXPECT().ListCategories(gomock.Any(), "test-user-id").
		Return([]storage.Category{{Name: "acme", OwnerID: "test-user-id", URLCount: 3}}, nil)

	req := middleware.InjectIdentity(httptest.NewRequest(http.MethodGet, "/api/suborg", nil), testUser)
	w := httptest.NewRecorder()
	h.ListCategories(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body []models.CategoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []models.CategoryResponse{{Name: "acme", URLCount: 3}}, body)
}

func TestProfile(t *testing.T) {
	t.Run("counts", func(t *testing.T) {
		h, mockService := createTestHandler(t)
		mockService.EXPECT().GetUser(gomock.Any(), "test-user-id").
			Return(&storage.User{ID: "test-user-id", URLCount: 4}, nil)

		req := middleware.InjectIdentity(httptest.NewRequest(http.MethodGet, "/api/user", nil), testUser)
		w := httptest.NewRecorder()
		h.Profile(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body models.UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.UserResponse{ID: "test-user-id", URLCount: 4}, body)
	})

	t.Run("store down", func(t *testing.T) {
		h, mockService := createTestHandler(t)
		mockService.EXPECT().GetUser(gomock.Any(), "test-user-id").
			Return(nil, internalerrors.Wrap(internalerrors.KindStorage, "something went wrong, please try again", errors.New("down")))

		req := middleware.InjectIdentity(httptest.NewRequest(http.MethodGet, "/api/user", nil), testUser)
		w := httptest.NewRecorder()
		h.Profile(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		h, _ := createTestHandler(t)

		w := httptest.NewRecorder()
		h.Profile(w, httptest.NewRequest(http.MethodGet, "/api/user", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
