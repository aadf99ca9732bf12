package hlscapture

import (
	"context"
	"image"
	"net/http"
	"time"
)

type Config struct {
	FFmpegBinary  string
	FFprobeBinary string

	HTTPClient *http.Client
	// creates a private extractor for every extraction, ffmpeg by default
	NewExtractor func() MediaFrameExtractor

	LoadTimeout  time.Duration // how long can it take for media to become seekable
	ProbeTimeout time.Duration // bound of the lighter-weight duration probe
	// how long is a timed out extraction awaited after its extractor was disposed
	DisposeTimeout time.Duration

	SegmentDuration  float64 // nominal duration of a single segment, in seconds
	SegmentMargin    float64 // distance of first and last frame from segment edges
	FallbackStart    float64 // direct sampling window start, when segment cannot be resolved
	FallbackEnd      float64 // direct sampling window end
	MaxPlaylistDepth int     // how many master -> variant hops are followed
	MaxConcurrency   int     // extractions running at once within a batch, 0 means unbounded

	PreviewTTL           time.Duration // how long are unreleased previews kept
	PreviewCleanupPeriod time.Duration // how often should be preview cleanup called
}

func (c Config) withDefaultValues() Config {
	if c.FFmpegBinary == "" {
		c.FFmpegBinary = "ffmpeg"
	}
	if c.FFprobeBinary == "" {
		c.FFprobeBinary = "ffprobe"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.LoadTimeout == 0 {
		c.LoadTimeout = 30 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 8 * time.Second
	}
	if c.DisposeTimeout == 0 {
		c.DisposeTimeout = 2 * time.Second
	}
	if c.SegmentDuration == 0 {
		c.SegmentDuration = 6
	}
	if c.SegmentMargin == 0 {
		c.SegmentMargin = 0.5
	}
	if c.FallbackStart == 0 {
		c.FallbackStart = 2
	}
	if c.FallbackEnd == 0 {
		c.FallbackEnd = 8
	}
	if c.MaxPlaylistDepth == 0 {
		c.MaxPlaylistDepth = 3
	}
	if c.PreviewTTL == 0 {
		c.PreviewTTL = 10 * time.Minute
	}
	if c.PreviewCleanupPeriod == 0 {
		c.PreviewCleanupPeriod = 30 * time.Second
	}
	if c.NewExtractor == nil {
		c.NewExtractor = func() MediaFrameExtractor {
			return NewFFmpegExtractor(c.FFmpegBinary, c.FFprobeBinary, c.HTTPClient, c.ProbeTimeout)
		}
	}
	return c
}

type Options struct {
	Width   int
	Height  int
	Quality float64 // fraction in [0, 1]
}

// CoverOptions returns options of a single cover capture.
func CoverOptions() Options {
	return Options{Width: 400, Height: 225, Quality: 0.8}
}

// BatchOptions returns options of cover candidates.
func BatchOptions() Options {
	return Options{Width: 320, Height: 180, Quality: 0.7}
}

// cover capture timestamps, HLS needs longer startup buffering
const (
	coverTimestampDirect = 2
	coverTimestampHLS    = 5
)

type CaptureRequest struct {
	SourceURL string
	Timestamp float64 // in seconds
	Width     int
	Height    int
	Quality   float64
}

type CapturedFrame struct {
	Image     []byte // JPEG
	Timestamp float64
	Index     int
	Preview   *Preview
}

// MediaFrameExtractor is a single-use decoder session. Implementations are not
// shared between extractions and must tolerate Dispose being called more than once.
type MediaFrameExtractor interface {
	Load(ctx context.Context, sourceURL string) error
	SeekTo(ctx context.Context, seconds float64) error
	CaptureRasterFrame(ctx context.Context, width, height int) (image.Image, error)
	Dispose() error
}

type Capture interface {
	ResolveFirstSegment(ctx context.Context, manifestURL string) (string, error)
	ExtractFrame(ctx context.Context, req CaptureRequest) ([]byte, error)
	CaptureFrames(ctx context.Context, sourceURL string, count int, opts Options) []CapturedFrame

	CaptureCoverImage(ctx context.Context, sourceURL string) ([]byte, error)
	CaptureMultipleFrames(ctx context.Context, sourceURL string, count int) []CapturedFrame

	Previews() *PreviewStore
	Shutdown()
}
