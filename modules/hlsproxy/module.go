package hlsproxy

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-portal/pkg/hlsproxy"
)

var resourceRegex = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

type managerEntry struct {
	manager  hlsproxy.Manager
	lastUsed time.Time
}

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	config     Config
	resolver   Resolver

	managers   map[string]*managerEntry
	managersMu sync.Mutex

	shutdown chan struct{}
	wg       sync.WaitGroup
}

func New(pathPrefix string, config *Config, resolver Resolver) *ModuleCtx {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "hlsproxy").Logger(),
		pathPrefix: "/" + strings.Trim(pathPrefix, "/") + "/",
		config:     config.withDefaultValues(),
		resolver:   resolver,

		managers: make(map[string]*managerEntry),
		shutdown: make(chan struct{}),
	}

	module.wg.Add(1)
	go func() {
		defer module.wg.Done()

		ticker := time.NewTicker(module.config.IdleTimeout / 2)
		defer ticker.Stop()

		for {
			select {
			case <-module.shutdown:
				return
			case <-ticker.C:
				module.Cleanup()
			}
		}
	}()

	return module
}

func (m *ModuleCtx) Shutdown() {
	close(m.shutdown)
	m.wg.Wait()

	m.managersMu.Lock()
	defer m.managersMu.Unlock()

	for pId, entry := range m.managers {
		entry.manager.Shutdown()
		delete(m.managers, pId)
	}
}

// Cleanup removes managers that were not used for a while.
func (m *ModuleCtx) Cleanup() {
	m.managersMu.Lock()
	defer m.managersMu.Unlock()

	for pId, entry := range m.managers {
		if time.Since(entry.lastUsed) > m.config.IdleTimeout {
			entry.manager.Shutdown()
			delete(m.managers, pId)
			m.logger.Debug().Str("pId", pId).Msg("removed idle manager")
		}
	}
}

// EntryPath returns local playlist path of the player.
func (m *ModuleCtx) EntryPath(pId, playlistURL string) (string, error) {
	manager, err := m.manager(pId, playlistURL)
	if err != nil {
		return "", err
	}
	return manager.EntryPath(), nil
}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, m.pathPrefix) {
		http.NotFound(w, r)
		return
	}

	p := strings.TrimPrefix(r.URL.Path, m.pathPrefix)
	pId, _, _ := strings.Cut(p, "/")

	// check if parameters match regex
	if !resourceRegex.MatchString(pId) {
		http.Error(w, "400 invalid parameters", http.StatusBadRequest)
		return
	}

	playlistURL, err := m.resolver(r.Context(), pId)
	if errors.Is(err, ErrSourceNotFound) {
		http.Error(w, "404 source not found", http.StatusNotFound)
		return
	}
	if err != nil {
		m.logger.Err(err).Str("pId", pId).Msg("unable to resolve source")
		http.Error(w, "500 unable to resolve source", http.StatusInternalServerError)
		return
	}

	manager, err := m.manager(pId, playlistURL)
	if err != nil {
		m.logger.Warn().Err(err).Str("pId", pId).Msg("unable to proxy source")
		http.Error(w, "400 source cannot be proxied", http.StatusBadRequest)
		return
	}

	manager.ServeHTTP(w, r)
}

// manager returns proxy manager for pId, it is replaced when source URL changes.
func (m *ModuleCtx) manager(pId, playlistURL string) (hlsproxy.Manager, error) {
	m.managersMu.Lock()
	defer m.managersMu.Unlock()

	entry, ok := m.managers[pId]
	if ok && entry.manager.PlaylistURL() == playlistURL {
		entry.lastUsed = time.Now()
		return entry.manager, nil
	}

	if ok {
		entry.manager.Shutdown()
		delete(m.managers, pId)
		m.logger.Info().Str("pId", pId).Msg("source changed, replacing manager")
	}

	manager, err := hlsproxy.New(&hlsproxy.Config{
		PlaylistURL:        playlistURL,
		PathPrefix:         m.pathPrefix + pId,
		CacheCleanupPeriod: m.config.CacheCleanupPeriod,
		SegmentExpiration:  m.config.SegmentExpiration,
		PlaylistExpiration: m.config.PlaylistExpiration,
	})
	if err != nil {
		return nil, err
	}

	m.managers[pId] = &managerEntry{
		manager:  manager,
		lastUsed: time.Now(),
	}

	return manager, nil
}
