package hlscapture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-portal/internal/utils"
	"github.com/m1k1o/go-portal/pkg/hlsutil"
)

// seeking exactly to the end yields no frame
const lastFrameMargin = 0.1

var hlsInputArgs = []string{"-protocol_whitelist", "file,http,https,tcp,tls,crypto"}

// FFmpegExtractor decodes frames with ffmpeg. HLS sources are rewritten to a
// local playlist first, so that every segment and key request carries the
// query parameters of the original URL.
type FFmpegExtractor struct {
	logger        zerolog.Logger
	ffmpegBinary  string
	ffprobeBinary string
	client        *http.Client
	probeTimeout  time.Duration

	mu        sync.Mutex
	disposed  bool
	workDir   string
	input     string
	inputArgs []string
	duration  float64
	timestamp float64
	cancel    context.CancelFunc
}

func NewFFmpegExtractor(ffmpegBinary, ffprobeBinary string, client *http.Client, probeTimeout time.Duration) *FFmpegExtractor {
	return &FFmpegExtractor{
		logger:        log.With().Str("module", "hlscapture").Str("submodule", "ffmpeg").Logger(),
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		client:        client,
		probeTimeout:  probeTimeout,
	}
}

func (e *FFmpegExtractor) Load(ctx context.Context, sourceURL string) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return fmt.Errorf("%w: extractor already disposed", ErrDecode)
	}
	e.mu.Unlock()

	input, inputArgs := sourceURL, []string(nil)
	if hlsutil.IsHLS(sourceURL) {
		playlistPath, err := e.localPlaylist(ctx, sourceURL)
		if err != nil {
			return err
		}
		input, inputArgs = playlistPath, hlsInputArgs
	}

	probe, err := ProbeMedia(ctx, e.ffprobeBinary, inputArgs, input, e.probeTimeout)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.input = input
	e.inputArgs = inputArgs
	e.duration = probe.Duration.Seconds()
	e.mu.Unlock()

	e.logger.Debug().
		Str("source", sourceURL).
		Float64("duration", e.duration).
		Int("width", probe.Width).
		Int("height", probe.Height).
		Msg("media loaded")
	return nil
}

func (e *FFmpegExtractor) SeekTo(ctx context.Context, seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.input == "" {
		return fmt.Errorf("%w: media not loaded", ErrDecode)
	}

	if seconds < 0 {
		seconds = 0
	}

	// clamp to media duration, when it is known
	if e.duration > 0 && seconds > e.duration-lastFrameMargin {
		seconds = e.duration - lastFrameMargin
		if seconds < 0 {
			seconds = 0
		}
	}

	e.timestamp = seconds
	return nil
}

func (e *FFmpegExtractor) CaptureRasterFrame(ctx context.Context, width, height int) (image.Image, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: extractor already disposed", ErrDecode)
	}
	if e.input == "" {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: media not loaded", ErrDecode)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(e.timestamp, 'f', 3, 64),
	}
	args = append(args, e.inputArgs...)
	args = append(args,
		"-i", e.input,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	)
	e.mu.Unlock()
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegBinary, args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = utils.LogWriter(e.logger)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v", ErrDecode, err)
	}

	return rgbToImage(stdout.Bytes(), width, height)
}

func (e *FFmpegExtractor) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil
	}
	e.disposed = true

	if e.cancel != nil {
		e.cancel()
	}

	if e.workDir != "" {
		return os.RemoveAll(e.workDir)
	}

	return nil
}

// localPlaylist writes media playlist of sourceURL to a private directory,
// with all references made absolute and carrying source query parameters.
func (e *FFmpegExtractor) localPlaylist(ctx context.Context, sourceURL string) (string, error) {
	current := sourceURL

	body, err := fetchManifest(ctx, e.client, current)
	if err != nil {
		return "", err
	}

	// descend into the first variant of master playlist
	if hlsutil.IsMasterPlaylist(body) {
		if uri, ok := firstVariant(body); ok {
			variantURL, err := hlsutil.ResolveReference(current, uri)
			if err != nil {
				return "", fmt.Errorf("%w: invalid variant %q: %v", ErrDecode, uri, err)
			}

			if current, err = hlsutil.MergeQuery(variantURL, current); err != nil {
				return "", fmt.Errorf("%w: invalid variant %q: %v", ErrDecode, uri, err)
			}

			if body, err = fetchManifest(ctx, e.client, current); err != nil {
				return "", err
			}
		}
	}

	// only credentials of the source are spread, not variant parameters
	rewrite, err := hlsutil.CredentialRewriter(current, sourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return "", fmt.Errorf("%w: extractor already disposed", ErrDecode)
	}

	if e.workDir == "" {
		e.workDir, err = os.MkdirTemp("", "portal-capture-*")
		if err != nil {
			return "", fmt.Errorf("could not create temp dir: %w", err)
		}
	}

	playlistPath := filepath.Join(e.workDir, "index.m3u8")
	if err := os.WriteFile(playlistPath, []byte(hlsutil.PlaylistURLWalk(body, rewrite)), 0644); err != nil {
		return "", fmt.Errorf("could not write playlist: %w", err)
	}

	return playlistPath, nil
}

func rgbToImage(data []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", ErrEncode, width, height)
	}

	if len(data) < width*height*3 {
		return nil, fmt.Errorf("%w: no frame decoded", ErrDecode)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < width*height*3; i, j = i+3, j+4 {
		img.Pix[j] = data[i]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i+2]
		img.Pix[j+3] = 0xff
	}

	return img, nil
}
