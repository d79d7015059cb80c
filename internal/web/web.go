// Package web serves calendar months over HTTP: a JSON API, a
// server-rendered month page, an ICS feed and PNG previews of the page.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entcal/internal/calendar"
	"entcal/internal/config"
	appLog "entcal/internal/log"
	"entcal/internal/viewmodel"
)

// Capturer renders a page URL to PNG bytes.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	// Config returns the current configuration; it is called per request.
	Config func() *config.Config
	// Loader serves months, normally a *gateway.Gateway.
	Loader viewmodel.Loader
	// Capturer is optional; without it preview.png answers 503.
	Capturer Capturer
	// Now overrides the clock used for the today marker.
	Now func() time.Time
}

// Server provides the HTTP API and pages.
type Server struct {
	cfg      func() *config.Config
	loader   viewmodel.Loader
	capturer Capturer
	now      func() time.Time
	mux      *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		cfg:      opts.Config,
		loader:   opts.Loader,
		capturer: opts.Capturer,
		now:      opts.Now,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler with auth, request IDs and metrics.
func (s *Server) Handler() http.Handler {
	return requestIDMiddleware(instrument(s.basicAuthMiddleware(s.mux)))
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, s *Server) error {
	cfg := s.cfg()
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+cfg.Listen)
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/calendar/{kind}/{id}", s.handleMonth)
	s.mux.HandleFunc("GET /api/calendar/{kind}/{id}/days/{date}", s.handleDay)
	s.mux.HandleFunc("GET /api/navigate", s.handleNavigate)

	// Wildcards must span a whole segment, so /calendar/{kind}/{id}.ics
	// is dispatched inside handleCalendar.
	s.mux.HandleFunc("GET /calendar/{kind}/{id}", s.handleCalendar)
	s.mux.HandleFunc("GET /calendar/{kind}/{id}/preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) normalizer() *calendar.Normalizer {
	cfg := s.cfg()
	n := calendar.NewNormalizer(cfg.Location())
	n.Fallback = cfg.Fallback()
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
