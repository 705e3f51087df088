// Package server exposes the upscaler over HTTP: a one-shot POST endpoint,
// a websocket endpoint that streams progress, and prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofrs/uuid"

	"github.com/deepteams/upscale"
	"github.com/deepteams/upscale/internal/config"
	"github.com/deepteams/upscale/internal/logger"
)

// Server serves conversions over HTTP. At most conf.MaxConcurrent
// conversions run at once; further requests are refused, not queued.
type Server struct {
	conf     config.Server
	defaults config.Upscale
	log      *logger.Logger
	metrics  *Metrics

	// sem bounds the conversions in flight across both endpoints.
	sem chan struct{}
	mux *http.ServeMux
}

// New returns a server that converts with the defaults of the upscale
// section. A nil log discards everything.
func New(conf config.Server, defaults config.Upscale, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if conf.MaxConcurrent < 1 {
		conf.MaxConcurrent = 1
	}
	s := &Server{
		conf:     conf,
		defaults: defaults,
		log:      log,
		metrics:  NewMetrics(),
		sem:      make(chan struct{}, conf.MaxConcurrent),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /upscale", s.handleUpscale)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if conf.Metrics {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s
}

// Handler returns the routing handler, for mounting or tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Run serves on the configured address until ctx is done, then shuts down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or serving fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Bool("metrics", s.conf.Metrics).Msg("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	timeout := s.conf.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info().Msg("shutting down")
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// acquire takes a conversion slot without blocking.
func (s *Server) acquire() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() { <-s.sem }

func newRequestID() string { return uuid.Must(uuid.NewV4()).String() }

// convert runs one request and records its metrics.
func (s *Server) convert(ctx context.Context, id string, req upscale.Request, r upscale.Reporter) (*upscale.Output, error) {
	start := time.Now()
	log := s.log.With().Str("request", id).Logger()
	opts := append(s.defaults.Options(), upscale.WithReporter(r), upscale.WithLogger(log))
	out, err := upscale.Convert(ctx, req, opts...)
	outcome, frames := "ok", 0
	if err != nil {
		outcome = upscale.KindOf(err).String()
	} else {
		frames = out.Frames
	}
	s.metrics.Observe(req.Format().String(), outcome, time.Since(start), frames)
	return out, err
}

// statusOf maps a conversion error to an HTTP status.
func statusOf(err error) int {
	if errors.Is(err, upscale.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch upscale.KindOf(err) {
	case upscale.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case upscale.KindInvalidScale:
		return http.StatusBadRequest
	case upscale.KindCorruptContainer:
		return http.StatusUnprocessableEntity
	case upscale.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
