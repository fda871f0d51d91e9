package http

import (
	"context"
	stdhttp "net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks that the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness for the service. With a non-nil pinger it answers 503 while the
// store is unreachable.
func HealthHandler(pinger Pinger) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				writeError(w, stdhttp.StatusServiceUnavailable, codeUnavailable, "store unavailable")
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
