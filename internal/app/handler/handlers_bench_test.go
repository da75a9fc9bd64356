package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atinyakov/suborg-shortener/internal/app/service"
	"github.com/atinyakov/suborg-shortener/internal/logger"
	"github.com/atinyakov/suborg-shortener/internal/middleware"
	"github.com/atinyakov/suborg-shortener/internal/models"
	"github.com/atinyakov/suborg-shortener/internal/storage"
)

func newBenchService(b *testing.B) *service.URLService {
	b.Helper()

	mem, _ := storage.CreateMemoryStorage()
	zapLogger := logger.New().Log

	generator, err := service.NewEndpointGenerator(8, 10, mem)
	if err != nil {
		b.Fatal(err)
	}

	return service.NewURL(
		mem,
		generator,
		service.NewAliasValidator(mem, nil),
		service.NewDestinationNormalizer(service.StaticChecker(true)),
		service.NewCounterService(mem, nil, zapLogger),
		zapLogger,
	)
}

func BenchmarkCreate(b *testing.B) {
	postHandler := NewPost("http://localhost", newBenchService(b), logger.New().Log)

	body, _ := json.Marshal(models.CreateRequest{OriginalURL: "https://example.com"})

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/url", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = middleware.InjectIdentity(req, models.Identity{UserID: "bench"})

		postHandler.Create(httptest.NewRecorder(), req)
	}
}

func BenchmarkRedirect(b *testing.B) {
	svc := newBenchService(b)
	getHandler := NewGet("http://localhost", svc, logger.New().Log)

	for i := 0; i < 100; i++ {
		_, err := svc.Create(context.Background(), models.Identity{UserID: "bench"}, models.CreateRequest{
			OriginalURL:   "https://example.com",
			WantCustomURL: true,
			CustomURL:     fmt.Sprintf("alias%d", i),
		})
		if err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req = muxRequestWithParams(req, map[string]string{"alias": fmt.Sprintf("alias%d", i%100)})

		getHandler.Redirect(httptest.NewRecorder(), req)
	}
}
