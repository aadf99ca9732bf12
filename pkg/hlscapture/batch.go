package hlscapture

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m1k1o/go-portal/internal/metrics"
	"github.com/m1k1o/go-portal/pkg/hlsutil"
)

// CaptureFrames captures count frames spread over the beginning of the
// source. It never fails, frames that could not be captured are left out and
// the rest is ordered by requested timestamp.
func (c *CapturerCtx) CaptureFrames(ctx context.Context, sourceURL string, count int, opts Options) []CapturedFrame {
	if count <= 0 {
		return []CapturedFrame{}
	}

	logger := c.logger.With().Str("source", sourceURL).Int("count", count).Logger()

	targetURL := sourceURL
	start := c.config.SegmentMargin
	end := c.config.SegmentDuration - c.config.SegmentMargin

	if hlsutil.IsHLS(sourceURL) {
		segmentURL, err := c.ResolveFirstSegment(ctx, sourceURL)
		if err != nil {
			logger.Warn().Err(err).Msg("unable to resolve first segment, sampling stream directly")
			start, end = c.config.FallbackStart, c.config.FallbackEnd
		} else {
			logger.Info().Str("segment", segmentURL).Msg("using first segment")
			targetURL = segmentURL
		}
	}

	timestamps := spreadTimestamps(start, end, count)
	results := make([]*CapturedFrame, count)

	var g errgroup.Group
	if c.config.MaxConcurrency > 0 {
		g.SetLimit(c.config.MaxConcurrency)
	}

	began := time.Now()
	for i, timestamp := range timestamps {
		i, timestamp := i, timestamp
		g.Go(func() error {
			image, err := c.ExtractFrame(ctx, CaptureRequest{
				SourceURL: targetURL,
				Timestamp: timestamp,
				Width:     opts.Width,
				Height:    opts.Height,
				Quality:   opts.Quality,
			})
			if err != nil {
				metrics.CaptureFrames.WithLabelValues("failed").Inc()
				logger.Warn().Err(err).
					Int("frame", i+1).
					Float64("timestamp", timestamp).
					Msg("unable to capture frame")
				return nil
			}

			metrics.CaptureFrames.WithLabelValues("ok").Inc()
			results[i] = &CapturedFrame{
				Image:     image,
				Timestamp: timestamp,
				Index:     i,
			}
			return nil
		})
	}

	// tasks never fail, errors are recorded per frame
	_ = g.Wait()
	metrics.CaptureDuration.WithLabelValues("batch").Observe(time.Since(began).Seconds())

	frames := make([]CapturedFrame, 0, count)
	for _, frame := range results {
		if frame == nil {
			continue
		}

		frame.Preview = c.previews.Register(frame.Image)
		frames = append(frames, *frame)
	}

	logger.Info().Int("captured", len(frames)).Msg("batch capture finished")
	return frames
}

// spreadTimestamps returns count evenly spaced timestamps from start to end,
// both inclusive.
func spreadTimestamps(start, end float64, count int) []float64 {
	if count <= 0 {
		return nil
	}

	if count == 1 {
		return []float64{start}
	}

	step := (end - start) / float64(count-1)

	timestamps := make([]float64, count)
	for i := range timestamps {
		timestamps[i] = start + step*float64(i)
	}

	// avoid accumulated float error on the last one
	timestamps[count-1] = end
	return timestamps
}
