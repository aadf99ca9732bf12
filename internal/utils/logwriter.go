package utils

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogWriterCtx forwards output of external processes, line by line, to logger.
type LogWriterCtx struct {
	logger zerolog.Logger
}

func LogWriter(l zerolog.Logger) *LogWriterCtx {
	return &LogWriterCtx{
		logger: l,
	}
}

func (l LogWriterCtx) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		l.logger.Warn().Str("output", "stderr").Msg(line)
	}

	return len(p), nil
}
