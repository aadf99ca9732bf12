package hlscapture

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-portal/internal/metrics"
	"github.com/m1k1o/go-portal/pkg/hlsutil"
)

type CapturerCtx struct {
	logger   zerolog.Logger
	config   Config
	previews *PreviewStore
}

func New(config *Config) *CapturerCtx {
	cfg := config.withDefaultValues()

	return &CapturerCtx{
		logger:   log.With().Str("module", "hlscapture").Logger(),
		config:   cfg,
		previews: NewPreviewStore(cfg.PreviewTTL, cfg.PreviewCleanupPeriod),
	}
}

func (c *CapturerCtx) Previews() *PreviewStore {
	return c.previews
}

func (c *CapturerCtx) Shutdown() {
	c.previews.Shutdown()
}

// CaptureCoverImage captures a single frame near the start of the stream.
func (c *CapturerCtx) CaptureCoverImage(ctx context.Context, sourceURL string) ([]byte, error) {
	timestamp := float64(coverTimestampDirect)
	if hlsutil.IsHLS(sourceURL) {
		timestamp = coverTimestampHLS
	}

	began := time.Now()
	defer func() {
		metrics.CaptureDuration.WithLabelValues("cover").Observe(time.Since(began).Seconds())
	}()

	opts := CoverOptions()
	image, err := c.ExtractFrame(ctx, CaptureRequest{
		SourceURL: sourceURL,
		Timestamp: timestamp,
		Width:     opts.Width,
		Height:    opts.Height,
		Quality:   opts.Quality,
	})
	if err != nil {
		metrics.CaptureFrames.WithLabelValues("failed").Inc()
		c.logger.Warn().Err(err).Str("source", sourceURL).Msg("cover capture failed")
		return nil, err
	}

	metrics.CaptureFrames.WithLabelValues("ok").Inc()
	return image, nil
}

// CaptureMultipleFrames captures cover candidates, failures are left out.
func (c *CapturerCtx) CaptureMultipleFrames(ctx context.Context, sourceURL string, count int) []CapturedFrame {
	return c.CaptureFrames(ctx, sourceURL, count, BatchOptions())
}
