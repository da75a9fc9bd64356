package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
	"github.com/atinyakov/suborg-shortener/internal/mocks"
	"github.com/atinyakov/suborg-shortener/internal/models"
)

func TestDelete(t *testing.T) {
	tests := []struct {
		name         string
		request      models.DeleteRequest
		scope        models.Scope
		deleted      bool
		err          error
		expectedCode int
	}{
		{
			name:         "root record",
			request:      models.DeleteRequest{ID: "id-1"},
			scope:        models.RootScope(),
			deleted:      true,
			expectedCode: http.StatusNoContent,
		},
		{
			name:         "suborg record",
			request:      models.DeleteRequest{ID: "id-2", Suborg: "acme"},
			scope:        models.CategoryScope("acme"),
			deleted:      true,
			expectedCode: http.StatusNoContent,
		},
		{
			name:         "no match",
			request:      models.DeleteRequest{ID: "someone-elses"},
			scope:        models.RootScope(),
			err:          internalerrors.ErrNotFound,
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockURLServiceIface(ctrl)
			h := NewDelete(mockService, zap.NewNop())

			mockService.EXPECT().
				Delete(gomock.Any(), "test-user-id", tt.request.ID, tt.scope).
				Return(tt.deleted, tt.err)

			rr := httptest.NewRecorder()
			h.Delete(rr, jsonRequest(t, http.MethodDelete, "/api/url", tt.request))

			assert.Equal(t, tt.expectedCode, rr.Code)
		})
	}
}

func TestDelete_Unauthorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewDelete(mocks.NewMockURLServiceIface(ctrl), zap.NewNop())

	req := httptest.NewRequest(http.MethodDelete, "/api/url", bytes.NewBufferString(`{"_id":"x"}`))
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
