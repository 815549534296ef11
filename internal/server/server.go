// Package server exposes archives over HTTP.
//
//	GET /healthz                                  database ping
//	GET /archive/{schema}/{table}?column=id&value=1[&format=yaml]
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/relarchive/internal/document"
	"github.com/koustreak/relarchive/internal/logger"
	"github.com/koustreak/relarchive/internal/schema"
)

// Archiver is the archive operation the server calls.
type Archiver interface {
	ArchiveBy(ctx context.Context, table schema.TableID, column string, value any) ([]*document.Row, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	Addr string

	// RequestTimeout bounds one archive request, including every nested query.
	RequestTimeout time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig listens on :8080.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		RequestTimeout:  time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP front end.
type Server struct {
	cfg      *Config
	archiver Archiver
	db       Pinger
	log      *logger.Logger
	mux      chi.Router
}

// New builds the router.
func New(cfg *Config, archiver Archiver, db Pinger, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{cfg: cfg, archiver: archiver, db: db, log: log.Component("server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/archive/{schema}/{table}", s.handleArchive)

	s.mux = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())

		ctx := s.log.With().Str("request_id", reqID).Logger().WithContext(r.Context())
		next.ServeHTTP(ww, r.WithContext(ctx))

		s.log.HTTPEvent().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
