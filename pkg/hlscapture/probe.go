package hlscapture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type ProbeData struct {
	FormatName []string
	Duration   time.Duration

	HasVideo bool
	Width    int
	Height   int
}

// ProbeMedia reads container and video stream metadata using ffprobe. The
// probe is bounded by timeout, expiry results in ErrLoadTimeout.
func ProbeMedia(ctx context.Context, ffprobeBinary string, inputArgs []string, input string, timeout time.Duration) (*ProbeData, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-v", "error", // Hide debug information
		"-show_format",  // Show container information
		"-show_streams", // Show codec information
		"-of", "json",
	}
	args = append(args, inputArgs...)
	args = append(args, input)

	cmd := exec.CommandContext(ctx, ffprobeBinary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: probe did not finish in %s", ErrLoadTimeout, timeout)
		}
		return nil, fmt.Errorf("%w: ffprobe: %v: %s", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*ProbeData, error) {
	out := struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
		} `json:"format"`
	}{}

	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: unable to parse probe output: %v", ErrDecode, err)
	}

	probe := ProbeData{}
	for _, stream := range out.Streams {
		if stream.CodecType != "video" || probe.HasVideo {
			continue
		}

		probe.HasVideo = true
		probe.Width = stream.Width
		probe.Height = stream.Height

		if duration, ok := parseSeconds(stream.Duration); ok {
			probe.Duration = duration
		}
	}

	if !probe.HasVideo {
		return nil, fmt.Errorf("%w: no video stream found", ErrDecode)
	}

	if out.Format.FormatName != "" {
		probe.FormatName = strings.Split(out.Format.FormatName, ",")
	}

	// container duration is preferred, live streams may not have any
	if duration, ok := parseSeconds(out.Format.Duration); ok {
		probe.Duration = duration
	}

	return &probe, nil
}

func parseSeconds(value string) (time.Duration, bool) {
	if value == "" || value == "N/A" {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}

	return time.Duration(seconds * float64(time.Second)), true
}
