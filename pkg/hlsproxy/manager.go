package hlsproxy

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-portal/internal/metrics"
	"github.com/m1k1o/go-portal/internal/utils"
	"github.com/m1k1o/go-portal/pkg/hlsutil"
)

// references outside of playlist directory are served under this subpath
const foreignPrefix = "_/"

type ManagerCtx struct {
	logger zerolog.Logger
	config Config

	root    *url.URL
	rootDir string

	// hosts that appeared in served playlists
	hosts   map[string]struct{}
	hostsMu sync.RWMutex

	// upstream responses by upstream URL, swept while not empty
	cache   map[string]*utils.StreamCache
	cacheMu sync.Mutex
	sweep   *time.Timer
	closed  bool
}

func New(config *Config) (*ManagerCtx, error) {
	cfg := config.withDefaultValues()

	root, err := url.Parse(cfg.PlaylistURL)
	if err != nil {
		return nil, fmt.Errorf("invalid playlist url: %w", err)
	}
	if !hlsutil.IsAbsolute(cfg.PlaylistURL) {
		return nil, fmt.Errorf("playlist url must be absolute http(s) url")
	}

	return &ManagerCtx{
		logger:  log.With().Str("module", "hlsproxy").Str("submodule", "manager").Str("prefix", cfg.PathPrefix).Logger(),
		config:  cfg,
		root:    root,
		rootDir: path.Dir(root.Path) + "/",
		hosts:   map[string]struct{}{strings.ToLower(root.Host): {}},
		cache:   map[string]*utils.StreamCache{},
	}, nil
}

func (m *ManagerCtx) Shutdown() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	m.closed = true
	if m.sweep != nil {
		m.sweep.Stop()
		m.sweep = nil
	}
	clear(m.cache)
}

func (m *ManagerCtx) PlaylistURL() string {
	return m.config.PlaylistURL
}

// EntryPath is local path of the upstream playlist.
func (m *ManagerCtx) EntryPath() string {
	return m.config.PathPrefix + path.Base(m.root.Path)
}

func (m *ManagerCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstream, err := m.upstreamURL(r.URL)
	if err != nil {
		m.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected proxy request")
		http.Error(w, "404 not found", http.StatusNotFound)
		return
	}

	if hlsutil.IsHLS(r.URL.Path) || strings.HasPrefix(strings.TrimPrefix(r.URL.Path, m.config.PathPrefix), foreignPrefix) && hlsutil.IsHLS(upstream) {
		m.ServePlaylist(w, r, upstream)
	} else {
		m.ServeSegment(w, r, upstream)
	}
}

func (m *ManagerCtx) ServePlaylist(w http.ResponseWriter, r *http.Request, upstream string) {
	cache, ok := m.cached(upstream)
	if !ok {
		resp, err := m.fetch(r, upstream)
		if err != nil {
			metrics.ProxyRequests.WithLabelValues("playlist", "failed").Inc()
			m.logger.Err(err).Str("url", upstream).Msg("unable to get playlist")
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.ProxyRequests.WithLabelValues("playlist", "failed").Inc()
			m.logger.Err(err).Msg("unable to read response body")
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		text := hlsutil.PlaylistURLWalk(string(buf), func(ref string) string {
			return m.localPath(upstream, ref)
		})

		metrics.ProxyRequests.WithLabelValues("playlist", "fetched").Inc()
		cache = m.store(upstream, io.NopCloser(strings.NewReader(text)), m.config.PlaylistExpiration)
	} else {
		metrics.ProxyRequests.WithLabelValues("playlist", "cached").Inc()
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	_ = cache.CopyTo(r.Context(), w)
}

func (m *ManagerCtx) ServeSegment(w http.ResponseWriter, r *http.Request, upstream string) {
	cache, ok := m.cached(upstream)
	if !ok {
		resp, err := m.fetch(r, upstream)
		if err != nil {
			metrics.ProxyRequests.WithLabelValues("segment", "failed").Inc()
			m.logger.Err(err).Str("url", upstream).Msg("unable to get segment")
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		metrics.ProxyRequests.WithLabelValues("segment", "fetched").Inc()
		cache = m.store(upstream, resp.Body, m.config.SegmentExpiration)
	} else {
		metrics.ProxyRequests.WithLabelValues("segment", "cached").Inc()
	}

	w.Header().Set("Content-Type", segmentContentType(upstream))
	w.WriteHeader(http.StatusOK)

	_ = cache.CopyTo(r.Context(), w)
}

func (m *ManagerCtx) cached(upstream string) (*utils.StreamCache, bool) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	entry, ok := m.cache[upstream]
	if !ok || entry.Expired() {
		return nil, false
	}

	return entry, true
}

// store buffers body in background, readers may follow it right away.
func (m *ManagerCtx) store(upstream string, body io.ReadCloser, ttl time.Duration) *utils.StreamCache {
	entry := utils.NewStreamCache(time.Now().Add(ttl))

	go func() {
		defer body.Close()

		_, err := io.Copy(entry, body)
		if err != nil {
			m.logger.Err(err).Str("url", upstream).Msg("upstream copy failed")
		}
		_ = entry.CloseWithError(err)
	}()

	m.cacheMu.Lock()
	m.cache[upstream] = entry
	m.scheduleSweep()
	m.cacheMu.Unlock()

	return entry
}

// scheduleSweep arms removal of expired entries, cacheMu must be held.
func (m *ManagerCtx) scheduleSweep() {
	if m.sweep != nil || m.closed {
		return
	}

	m.sweep = time.AfterFunc(m.config.CacheCleanupPeriod, m.sweepExpired)
}

func (m *ManagerCtx) sweepExpired() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	m.sweep = nil
	for key, entry := range m.cache {
		if entry.Expired() {
			delete(m.cache, key)
		}
	}

	m.logger.Debug().Int("entries", len(m.cache)).Msg("cache swept")
	if len(m.cache) > 0 {
		m.scheduleSweep()
	}
}

func (m *ManagerCtx) fetch(r *http.Request, upstream string) (*http.Response, error) {
	// upstream response is shared through cache, must outlive this request
	req, err := http.NewRequestWithContext(context.WithoutCancel(r.Context()), http.MethodGet, upstream, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.config.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return resp, nil
}

// upstreamURL maps local request onto upstream URL, with playlist query
// parameters merged in.
func (m *ManagerCtx) upstreamURL(local *url.URL) (string, error) {
	rest := strings.TrimPrefix(local.Path, m.config.PathPrefix)
	if rest == local.Path {
		return "", fmt.Errorf("path outside of prefix")
	}

	var target string
	if encoded, ok := strings.CutPrefix(rest, foreignPrefix); ok {
		decoded, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("invalid reference: %w", err)
		}

		u, err := url.Parse(string(decoded))
		if err != nil || !hlsutil.IsAbsolute(u.String()) {
			return "", fmt.Errorf("invalid reference")
		}

		if !m.knownHost(u.Host) {
			return "", fmt.Errorf("host %q was not referenced by playlist", u.Host)
		}

		target = u.String()
	} else {
		u := *m.root
		u.Path = path.Join(m.rootDir, path.Clean("/"+rest))
		u.RawPath = ""
		u.RawQuery = local.RawQuery
		target = u.String()
	}

	return hlsutil.MergeQuery(target, m.config.PlaylistURL)
}

// localPath rewrites playlist reference so that it points back to the proxy.
func (m *ManagerCtx) localPath(playlistURL, ref string) string {
	abs, err := hlsutil.ResolveReference(playlistURL, ref)
	if err != nil {
		m.logger.Warn().Err(err).Str("ref", ref).Msg("unable to resolve playlist reference")
		return ref
	}

	u, err := url.Parse(abs)
	if err != nil {
		return ref
	}

	if strings.EqualFold(u.Host, m.root.Host) && u.Scheme == m.root.Scheme && strings.HasPrefix(u.Path, m.rootDir) {
		local := m.config.PathPrefix + strings.TrimPrefix(u.Path, m.rootDir)
		if u.RawQuery != "" {
			local += "?" + u.RawQuery
		}
		return local
	}

	m.hostsMu.Lock()
	m.hosts[strings.ToLower(u.Host)] = struct{}{}
	m.hostsMu.Unlock()

	return m.config.PathPrefix + foreignPrefix + base64.RawURLEncoding.EncodeToString([]byte(abs))
}

func (m *ManagerCtx) knownHost(host string) bool {
	m.hostsMu.RLock()
	defer m.hostsMu.RUnlock()

	_, ok := m.hosts[strings.ToLower(host)]
	return ok
}

func segmentContentType(upstream string) string {
	u, err := url.Parse(upstream)
	if err != nil {
		return "video/MP2T"
	}

	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".mp4", ".m4s":
		return "video/mp4"
	case ".aac":
		return "audio/aac"
	case ".key":
		return "application/octet-stream"
	case ".vtt":
		return "text/vtt"
	default:
		return "video/MP2T"
	}
}
