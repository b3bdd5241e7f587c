package rest

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/storage"
	"github.com/italolelis/torrent_feeder/internal/telemetry"
)

const maxHistoryLimit = 500

// StatusHandler serves the daemon-mode status API.
type StatusHandler struct {
	username  string
	password  string
	history   storage.HistoryReadRepository
	telemetry *telemetry.Telemetry
	startedAt time.Time
}

// NewStatusHandler creates a status handler. Empty credentials disable basic
// auth on /history.
func NewStatusHandler(username, password string, history storage.HistoryReadRepository, t *telemetry.Telemetry) *StatusHandler {
	return &StatusHandler{
		username:  username,
		password:  password,
		history:   history,
		telemetry: t,
		startedAt: time.Now(),
	}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", h.telemetry.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.basicAuthMiddleware)
		r.Get("/history", h.HandleHistory)
	})

	return r
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// HandleHistory lists recently submitted jobs, newest first.
func (h *StatusHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	limit := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)

			return
		}

		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.ListHistory(r.Context(), limit)
	if err != nil {
		logger.Error("failed to list history", "err", err)
		http.Error(w, "failed to list history", http.StatusInternalServerError)

		return
	}

	if records == nil {
		records = []storage.HistoryRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *StatusHandler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.username == "" && h.password == "" {
			next.ServeHTTP(w, r)

			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(h.username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(h.password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="torrent_feeder"`)
			http.Error(w, "invalid username or password", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
