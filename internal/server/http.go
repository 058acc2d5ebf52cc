package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/shakai-quiz/internal/config"
	"github.com/gokatarajesh/shakai-quiz/internal/logging"
	httperrors "github.com/gokatarajesh/shakai-quiz/pkg/http/errors"
)

// WSUpgrader handles WebSocket upgrades. Sessions are cookie based, so only
// same-origin pages may connect.
var WSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionHandlers are the quiz session endpoints.
type SessionHandlers interface {
	ListDatasets(w http.ResponseWriter, r *http.Request)
	SelectDataset(w http.ResponseWriter, r *http.Request)
	Upload(w http.ResponseWriter, r *http.Request)
	SetName(w http.ResponseWriter, r *http.Request)
	Start(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Answer(w http.ResponseWriter, r *http.Request)
	Next(w http.ResponseWriter, r *http.Request)
	PlayAgain(w http.ResponseWriter, r *http.Request)
	Finish(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHTTPServer wires health, metrics, session and WebSocket routes.
// pinger may be nil when no external dependency is configured.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pinger Pinger, session SessionHandlers, sessionWS http.HandlerFunc) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(cfg, logger, pinger, session, sessionWS),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed and instrumented handler tree.
func NewHandler(cfg *config.App, logger zerolog.Logger, pinger Pinger, session SessionHandlers, sessionWS http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				logging.FromContext(r.Context()).Error().Err(err).Msg("dependency ping failed")
				httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeServiceUnavailable, "upstream error")
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if session != nil {
		mux.HandleFunc("GET /v1/datasets", session.ListDatasets)
		mux.HandleFunc("GET /v1/session", session.Get)
		mux.HandleFunc("POST /v1/session/dataset", session.SelectDataset)
		mux.HandleFunc("POST /v1/session/upload", session.Upload)
		mux.HandleFunc("POST /v1/session/name", session.SetName)
		mux.HandleFunc("POST /v1/session/start", session.Start)
		mux.HandleFunc("POST /v1/session/answer", session.Answer)
		mux.HandleFunc("POST /v1/session/next", session.Next)
		mux.HandleFunc("POST /v1/session/again", session.PlayAgain)
		mux.HandleFunc("POST /v1/session/finish", session.Finish)
		mux.HandleFunc("GET /v1/session/export", session.Export)
	}

	if sessionWS != nil {
		mux.HandleFunc("GET /ws/session", sessionWS)
	} else {
		mux.HandleFunc("GET /ws/session", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "WebSocket handler not configured", http.StatusNotImplemented)
		})
	}

	return logging.Middleware(logger)(cutoff(cfg, time.Now, mux))
}

// cutoff answers 503 on application routes once the configured date has passed.
func cutoff(cfg *config.App, now func() time.Time, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gated := strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasPrefix(r.URL.Path, "/ws/")
		if gated && cfg.Closed(now()) {
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceClosed, "This quiz is no longer available")
			return
		}
		next.ServeHTTP(w, r)
	})
}
