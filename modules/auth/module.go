package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-portal/internal/auth"
	"github.com/m1k1o/go-portal/internal/utils"
)

type Config struct {
	LoginRate int // attempts per minute and address, 0 disables limit
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	config     Config

	auth   *auth.ManagerCtx
	router chi.Router
}

func New(pathPrefix string, config *Config, manager *auth.ManagerCtx) *ModuleCtx {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "auth").Str("submodule", "http").Logger(),
		pathPrefix: pathPrefix,
		config:     *config,
		auth:       manager,
	}

	r := chi.NewRouter()
	r.Route(pathPrefix, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if module.config.LoginRate > 0 {
				r.Use(httprate.Limit(
					module.config.LoginRate,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						utils.HttpError(w, http.StatusTooManyRequests, "Too many login attempts")
					}),
				))
			}
			r.Post("/login", module.login)
		})

		r.Post("/logout", module.logout)
		r.Get("/me", module.me)
	})
	module.router = r

	return module
}

func (m *ModuleCtx) Shutdown() {
}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.router.ServeHTTP(w, r)
}

func (m *ModuleCtx) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		utils.HttpError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if !m.auth.ValidateAdmin(req.Username, req.Password) {
		m.logger.Warn().Str("username", req.Username).Str("remote", r.RemoteAddr).Msg("failed login attempt")
		utils.HttpError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	user := auth.User{Username: req.Username, Role: auth.RoleAdmin}

	token, err := m.auth.SignToken(user)
	if err != nil {
		m.logger.Err(err).Msg("unable to sign token")
		utils.HttpError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	m.auth.SetCookie(w, token)
	m.logger.Info().Str("username", user.Username).Msg("admin logged in")
	utils.HttpJsonResponse(w, http.StatusOK, user)
}

func (m *ModuleCtx) logout(w http.ResponseWriter, r *http.Request) {
	m.auth.ClearCookie(w)
	utils.HttpJsonResponse(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (m *ModuleCtx) me(w http.ResponseWriter, r *http.Request) {
	user := m.auth.CurrentUser(r)
	if user == nil {
		user = &auth.Guest
	}

	utils.HttpJsonResponse(w, http.StatusOK, user)
}
