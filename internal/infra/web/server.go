package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"garment-studio/internal/config"
	infraredis "garment-studio/internal/infra/redis"
	"garment-studio/internal/usecase"
)

// Server hosts the customization API. Routes live under /api/v1 and
// all of them except health and metrics require a user token.
type Server struct {
	http *http.Server
	cfg  config.ServerConfig
	log  *zerolog.Logger
}

func NewServer(
	cfg config.ServerConfig,
	uc usecase.CustomizationUseCase,
	auth *AuthManager,
	limiter *infraredis.RateLimiter,
	generatePerMinute int,
	log *zerolog.Logger,
) *Server {
	h := &handlers{uc: uc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(traceID)
	r.Use(requestLogger(log))

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Route("/customizations", func(r chi.Router) {
			r.Post("/preprocess", h.preprocess)
			r.With(rateLimit(limiter, "generate", generatePerMinute, time.Minute, log)).
				Post("/generate", h.generate)
			r.Post("/{jobID}/try-on", h.startTryOn)
			r.Get("/{jobID}", h.getJob)
		})

		r.Route("/try-on", func(r chi.Router) {
			r.Post("/direct", h.tryOnDirect)
			r.Get("/{id}/status", h.tryOnStatus)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg: cfg,
		log: log,
	}
}

// Run serves until ctx is canceled, then drains in-flight requests
// within the configured shutdown window.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }
