package hlscapture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"time"
)

// ExtractFrame decodes the frame at req.Timestamp and returns it JPEG encoded.
// Every call uses its own extractor, which is disposed on every exit path.
func (c *CapturerCtx) ExtractFrame(ctx context.Context, req CaptureRequest) ([]byte, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", ErrEncode, req.Width, req.Height)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.LoadTimeout)
	defer cancel()

	extractor := c.config.NewExtractor()
	defer func() {
		if err := extractor.Dispose(); err != nil {
			c.logger.Warn().Err(err).Str("source", req.SourceURL).Msg("unable to dispose extractor")
		}
	}()

	type result struct {
		img image.Image
		err error
	}

	// extractor may block regardless of context, timeout must win anyway
	done := make(chan result, 1)
	go func() {
		img, err := rasterize(ctx, extractor, req)
		done <- result{img, err}
	}()

	var img image.Image
	select {
	case res := <-done:
		if res.err != nil {
			return nil, classify(ctx, res.err)
		}
		img = res.img
	case <-ctx.Done():
		// decoder must not outlive the call
		_ = extractor.Dispose()
		select {
		case <-done:
		case <-time.After(c.config.DisposeTimeout):
			c.logger.Warn().Str("source", req.SourceURL).Msg("extractor did not stop after dispose")
		}
		return nil, classify(ctx, ctx.Err())
	}

	return encodeJPEG(img, req.Quality)
}

func rasterize(ctx context.Context, extractor MediaFrameExtractor, req CaptureRequest) (image.Image, error) {
	if err := extractor.Load(ctx, req.SourceURL); err != nil {
		return nil, err
	}

	if err := extractor.SeekTo(ctx, req.Timestamp); err != nil {
		return nil, err
	}

	return extractor.CaptureRasterFrame(ctx, req.Width, req.Height)
}

// classify maps extractor failures onto capture error kinds.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrLoadTimeout),
		errors.Is(err, ErrDecode),
		errors.Is(err, ErrEncode),
		errors.Is(err, ErrManifestFetch),
		errors.Is(err, ErrNoSegmentFound):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrLoadTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
}

func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: empty frame", ErrEncode)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	return buf.Bytes(), nil
}

// jpegQuality converts fraction in [0, 1] to encoder scale.
func jpegQuality(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
