package telemetry

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/italolelis/torrent_feeder/internal/logctx"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses an upstream X-Request-ID or generates one, echoes it in
// the response and scopes the request logger with it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := r.Context()
		logger := logctx.LoggerFromContext(ctx).With("request_id", requestID)

		next.ServeHTTP(w, r.WithContext(logctx.WithLogger(ctx, logger)))
	})
}
