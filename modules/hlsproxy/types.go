package hlsproxy

import (
	"context"
	"errors"
	"time"
)

var ErrSourceNotFound = errors.New("source not found")

// Resolver returns upstream playlist URL of the source identified by pId.
type Resolver func(ctx context.Context, pId string) (string, error)

type Config struct {
	SegmentExpiration  time.Duration
	PlaylistExpiration time.Duration
	CacheCleanupPeriod time.Duration

	// how long can manager stay unused before it is removed
	IdleTimeout time.Duration
}

func (c Config) withDefaultValues() Config {
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	return c
}
