package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/atinyakov/suborg-shortener/internal/models"
)

// WithRateLimit limits requests per caller. rate uses the limiter format,
// e.g. "30-M" for 30 requests a minute. Callers are keyed by user id, or
// by client IP when there is no identity.
func WithRateLimit(rate string) (func(http.Handler) http.Handler, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}

	instance := limiter.New(memory.NewStore(), r)

	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(func(req *http.Request) string {
			if identity, ok := IdentityFrom(req.Context()); ok {
				return "user:" + identity.UserID
			}
			return "ip:" + instance.GetIPKey(req)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(models.ErrorResponse{
				Kind:    "rate_limited",
				Message: "too many requests, please slow down",
			})
		}),
	)

	return mw.Handler, nil
}
