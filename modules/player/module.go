package player

import (
	"bytes"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed player.html
var playerHTML string

var playerTmpl = template.Must(template.New("player").Parse(playerHTML))

var resourceRegex = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	config     Config
	resolver   Resolver
}

func New(pathPrefix string, config *Config, resolver Resolver) *ModuleCtx {
	return &ModuleCtx{
		logger:     log.With().Str("module", "player").Logger(),
		pathPrefix: "/" + strings.Trim(pathPrefix, "/") + "/",
		config:     config.withDefaultValues(),
		resolver:   resolver,
	}
}

func (m *ModuleCtx) Shutdown() {}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pId, ok := strings.CutPrefix(r.URL.Path, m.pathPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}

	pId = strings.TrimSuffix(pId, "/")
	if !resourceRegex.MatchString(pId) {
		http.Error(w, "400 invalid parameters", http.StatusBadRequest)
		return
	}

	page, err := m.resolver(r.Context(), pId)
	if errors.Is(err, ErrPlayerNotFound) {
		http.Error(w, "404 player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		m.logger.Err(err).Str("pId", pId).Msg("unable to resolve player")
		http.Error(w, "500 unable to load player", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err = playerTmpl.Execute(&buf, struct {
		*Page
		HlsJsURL string
	}{page, m.config.HlsJsURL})
	if err != nil {
		m.logger.Err(err).Str("pId", pId).Msg("unable to render player")
		http.Error(w, "500 unable to load player", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = buf.WriteTo(w)
}
