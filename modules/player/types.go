package player

import (
	"context"
	"errors"
)

var ErrPlayerNotFound = errors.New("player not found")

// Page is data rendered on player page.
type Page struct {
	Name         string
	Description  string
	Announcement string
	Source       string
	Poster       string
}

// Resolver returns page data of the player identified by pId.
type Resolver func(ctx context.Context, pId string) (*Page, error)

type Config struct {
	// hls.js script location
	HlsJsURL string
}

func (c Config) withDefaultValues() Config {
	if c.HlsJsURL == "" {
		c.HlsJsURL = "https://cdn.jsdelivr.net/npm/hls.js@1"
	}
	return c
}
