package hlscapture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/m1k1o/go-portal/pkg/hlsutil"
)

// manifests are small text files, anything bigger is not a playlist
const maxManifestSize = 4 << 20

// ResolveFirstSegment returns absolute URL of the first media segment listed in
// the manifest, with query parameters of the manifest URL merged in.
func (c *CapturerCtx) ResolveFirstSegment(ctx context.Context, manifestURL string) (string, error) {
	current := manifestURL

	for depth := 1; ; depth++ {
		body, err := fetchManifest(ctx, c.config.HTTPClient, current)
		if err != nil {
			return "", err
		}

		ref, variant, err := pickReference(body)
		if err != nil {
			return "", fmt.Errorf("%s: %w", current, err)
		}

		resolved, err := hlsutil.ResolveReference(current, ref)
		if err != nil {
			return "", fmt.Errorf("%w: invalid reference %q: %v", ErrNoSegmentFound, ref, err)
		}

		resolved, err = hlsutil.MergeQuery(resolved, current)
		if err != nil {
			return "", fmt.Errorf("%w: invalid reference %q: %v", ErrNoSegmentFound, ref, err)
		}

		if !variant || depth >= c.config.MaxPlaylistDepth {
			c.logger.Debug().
				Str("manifest", manifestURL).
				Str("segment", resolved).
				Int("depth", depth).
				Msg("resolved first segment")
			return resolved, nil
		}

		c.logger.Debug().Str("variant", resolved).Msg("following variant playlist")
		current = resolved
	}
}

func fetchManifest(ctx context.Context, client *http.Client, manifestURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrManifestFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrManifestFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrManifestFetch, resp.StatusCode)
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrManifestFetch, err)
	}

	return string(buf), nil
}

// pickReference returns the first reference of a playlist and whether it
// points to a variant playlist rather than a media segment.
func pickReference(body string) (string, bool, error) {
	if hlsutil.IsMasterPlaylist(body) {
		if uri, ok := firstVariant(body); ok {
			return uri, true, nil
		}
	}

	ref, ok := hlsutil.FirstReference(body)
	if !ok {
		return "", false, ErrNoSegmentFound
	}

	return ref, false, nil
}

func firstVariant(body string) (string, bool) {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(body), false)
	if err != nil || listType != m3u8.MASTER {
		return "", false
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return "", false
	}

	for _, variant := range master.Variants {
		if variant != nil && strings.TrimSpace(variant.URI) != "" {
			return strings.TrimSpace(variant.URI), true
		}
	}

	return "", false
}
