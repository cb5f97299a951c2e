package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/audio"
	"github.com/abhisek/lingo/internal/session"
)

// EngineFactory builds an engine around the per-connection audio backends.
type EngineFactory func(player audio.Player, rec audio.Recorder) (*session.Engine, error)

// Server accepts websocket clients and gives each its own engine.
type Server struct {
	cfg      Config
	factory  EngineFactory
	metrics  *Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server. metrics may be nil.
func NewServer(cfg Config, factory EngineFactory, metrics *Metrics, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errors.New("bridge: engine factory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, factory: factory, metrics: metrics, logger: logger}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	return s, nil
}

// Routes returns the HTTP handler: /ws, /healthz and /metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/ws", s.serveWS)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", zap.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("bridge server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down bridge: %w", err)
		}
		return nil
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	logger := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	c := &connection{
		ws:       ws,
		cfg:      s.cfg,
		logger:   logger,
		metrics:  s.metrics,
		commands: make(chan ClientMessage, 32),
	}
	c.player = newRemotePlayer(c)
	c.recorder = newRemoteRecorder(c, s.cfg)

	engine, err := s.factory(c.player, c.recorder)
	if err != nil {
		logger.Error("failed to build session engine", zap.Error(err))
		c.sendError("connect", err)
		return
	}
	c.engine = engine

	if s.metrics != nil {
		s.metrics.ConnectionsActive.Inc()
		defer s.metrics.ConnectionsActive.Dec()
	}
	logger.Info("client connected", zap.String("remote", r.RemoteAddr))
	c.run(context.WithoutCancel(r.Context()))
	logger.Info("client disconnected", zap.String("remote", r.RemoteAddr))
}

func (s *Server) originAllowed(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
