package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-portal/internal/config"
	"github.com/m1k1o/go-portal/internal/utils"
)

const metricsPath = "/metrics"

type ServerManagerCtx struct {
	logger zerolog.Logger
	config *config.Server
	router *chi.Mux
	server *http.Server
}

func New(config *config.Server) *ServerManagerCtx {
	logger := log.With().Str("module", "server").Logger()

	router := chi.NewRouter()
	router.Use(middleware.RequestID) // Create a request ID for each request

	// get real users ip
	if config.Proxy {
		router.Use(middleware.RealIP)
	}

	// add http logger
	router.Use(middleware.RequestLogger(&logformatter{logger}))
	router.Use(middleware.Recoverer) // Recover from panics without crashing server

	// serve static files
	if config.Static != "" {
		fs := http.FileServer(http.Dir(config.Static))
		router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			if _, err := os.Stat(config.Static + r.URL.Path); os.IsNotExist(err) {
				http.StripPrefix(r.URL.Path, fs).ServeHTTP(w, r)
			} else {
				fs.ServeHTTP(w, r)
			}
		})
	}

	// mount pprof endpoint
	if config.PProf {
		withPProf(router)
		logger.Info().Msgf("with pprof endpoint at %s", pprofPath)
	}

	// mount prometheus endpoint
	if config.Metrics {
		router.Handle(metricsPath, promhttp.Handler())
		logger.Info().Msgf("with metrics endpoint at %s", metricsPath)
	}

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		//nolint
		_, _ = w.Write([]byte("pong"))
	})

	// use custom 404
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.HttpError(w, http.StatusNotFound, "Not found")
	})

	return &ServerManagerCtx{
		logger: logger,
		config: config,
		router: router,
		server: &http.Server{
			Addr:              config.Bind,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *ServerManagerCtx) Start() {
	if s.config.Cert != "" && s.config.Key != "" {
		s.logger.Warn().Msg("TLS support is provided for convenience, but you should never use it in production. Use a reverse proxy (apache nginx caddy) instead!")
		go func() {
			if err := s.server.ListenAndServeTLS(s.config.Cert, s.config.Key); err != http.ErrServerClosed {
				s.logger.Panic().Err(err).Msg("unable to start https server")
			}
		}()
		s.logger.Info().Msgf("https listening on %s", s.server.Addr)
	} else {
		go func() {
			if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
				s.logger.Panic().Err(err).Msg("unable to start http server")
			}
		}()
		s.logger.Info().Msgf("http listening on %s", s.server.Addr)
	}
}

func (s *ServerManagerCtx) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Handle mounts handler under pattern, pattern may end with /* to match subpaths.
func (s *ServerManagerCtx) Handle(pattern string, handler http.Handler) {
	s.router.Handle(pattern, handler)
}

func (s *ServerManagerCtx) Mount(fn func(r chi.Router)) {
	fn(s.router)
}

func (s *ServerManagerCtx) Handler() http.Handler {
	return s.router
}
