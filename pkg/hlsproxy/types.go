package hlsproxy

import (
	"net/http"
	"strings"
	"time"
)

type Config struct {
	PlaylistURL string // upstream playlist, its query parameters are sent with every upstream request
	PathPrefix  string // local path the playlist is served under

	HTTPClient *http.Client

	CacheCleanupPeriod time.Duration // delay between sweeps of expired responses
	SegmentExpiration  time.Duration // how long should be segment kept in memory
	PlaylistExpiration time.Duration // how long should be playlist kept in memory
}

func (c Config) withDefaultValues() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.CacheCleanupPeriod == 0 {
		c.CacheCleanupPeriod = 4 * time.Second
	}
	if c.SegmentExpiration == 0 {
		c.SegmentExpiration = 60 * time.Second
	}
	if c.PlaylistExpiration == 0 {
		c.PlaylistExpiration = 1 * time.Second
	}
	// ensure it starts and ends with single /
	c.PathPrefix = "/" + strings.Trim(c.PathPrefix, "/") + "/"
	return c
}

type Manager interface {
	Shutdown()

	PlaylistURL() string
	EntryPath() string
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
