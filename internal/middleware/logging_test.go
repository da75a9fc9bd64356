package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atinyakov/suborg-shortener/internal/models"
)

func bufferLogger(buf *bytes.Buffer) *zap.Logger {
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(buf), zapcore.InfoLevel)
	return zap.New(core)
}

func TestWithRequestLogging(t *testing.T) {
	var logBuf bytes.Buffer
	logger := bufferLogger(&logBuf)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusTeapot) // 418
		_, _ = w.Write([]byte("I'm a teapot"))
	})

	loggedHandler := WithRequestLogging(logger)(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = InjectIdentity(req, models.Identity{UserID: "user-42"})
	rec := httptest.NewRecorder()

	loggedHandler.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Fatal("handler was not called")
	}

	resp := rec.Result()
	body, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", resp.StatusCode)
	}
	if string(body) != "I'm a teapot" {
		t.Errorf("unexpected response body: %s", body)
	}

	if logBuf.Len() == 0 {
		t.Fatal("no logs written")
	}
	for _, field := range []string{
		`"method":"GET"`,
		`"url":"/test"`,
		`"status":418`,
		`"size":12`,
		`"duration"`,
		`"user_id":"user-42"`,
	} {
		if !bytes.Contains(logBuf.Bytes(), []byte(field)) {
			t.Errorf("log does not contain %s", field)
		}
	}
}

func TestWithRequestLogging_ImplicitOK(t *testing.T) {
	var logBuf bytes.Buffer

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	WithRequestLogging(bufferLogger(&logBuf))(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !bytes.Contains(logBuf.Bytes(), []byte(`"status":200`)) {
		t.Errorf("expected implicit 200 in log, got %s", logBuf.String())
	}
	if !bytes.Contains(logBuf.Bytes(), []byte(`"user_id":""`)) {
		t.Errorf("expected empty user id, got %s", logBuf.String())
	}
}
