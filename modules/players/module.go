package players

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-portal/internal/auth"
	"github.com/m1k1o/go-portal/internal/cache"
	"github.com/m1k1o/go-portal/pkg/hlscapture"
)

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	config     Config

	store   Store
	cache   *cache.CacheCtx
	auth    *auth.ManagerCtx
	capture hlscapture.Capture

	router chi.Router
}

func New(pathPrefix string, config *Config, store Store, cache *cache.CacheCtx, auth *auth.ManagerCtx, capture hlscapture.Capture) *ModuleCtx {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "players").Logger(),
		pathPrefix: pathPrefix,
		config:     config.withDefaultValues(),

		store:   store,
		cache:   cache,
		auth:    auth,
		capture: capture,
	}

	module.router = module.routes()
	return module
}

func (m *ModuleCtx) routes() chi.Router {
	r := chi.NewRouter()

	r.Route(m.pathPrefix, func(r chi.Router) {
		r.Route("/players", func(r chi.Router) {
			r.Get("/", m.listPlayers)
			r.Get("/pid/{pId}", m.getPlayerByPID)
			r.Get("/{id}", m.getPlayer)
			r.Get("/{id}/cover", m.getCover)

			r.Group(func(r chi.Router) {
				r.Use(m.auth.RequireAdmin)

				r.Post("/", m.createPlayer)
				r.Put("/{id}", m.updatePlayer)
				r.Delete("/{id}", m.deletePlayer)
				r.Post("/{id}/cover", m.uploadCover)
				r.Post("/{id}/cover/select", m.selectCover)
				r.Post("/{id}/auto-capture", m.autoCapture)
				r.Post("/{id}/frames", m.captureFrames)
			})
		})

		r.Route("/previews", func(r chi.Router) {
			r.Use(m.auth.RequireAdmin)

			r.Get("/{previewId}", m.getPreview)
			r.Delete("/{previewId}", m.deletePreview)
		})
	})

	return r
}

func (m *ModuleCtx) Shutdown() {
	m.capture.Shutdown()
}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.router.ServeHTTP(w, r)
}
