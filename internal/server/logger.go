package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type logformatter struct {
	logger zerolog.Logger
}

func (l *logformatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	req := map[string]any{}

	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		req["id"] = reqID
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	req["scheme"] = scheme
	req["proto"] = r.Proto
	req["method"] = r.Method
	req["remote"] = r.RemoteAddr
	req["agent"] = r.UserAgent()
	req["uri"] = fmt.Sprintf("%s://%s%s", scheme, r.Host, r.RequestURI)

	return &logentry{
		logger: l.logger.With().Interface("req", req).Logger(),
	}
}

type logentry struct {
	logger zerolog.Logger
}

func (e *logentry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra any) {
	res := map[string]any{}
	res["time"] = time.Now().UTC().Format(time.RFC1123)
	res["status"] = status
	res["bytes"] = bytes
	res["elapsed"] = float64(elapsed.Nanoseconds()) / 1000000.0

	logger := e.logger.With().Interface("res", res).Logger()
	switch {
	case status >= 500:
		logger.Error().Msg("request failed")
	case status >= 400:
		logger.Warn().Msg("request rejected")
	default:
		logger.Debug().Msg("request complete")
	}
}

func (e *logentry) Panic(v any, stack []byte) {
	e.logger.Error().
		Str("panic", fmt.Sprintf("%+v", v)).
		Bytes("stack", stack).
		Msg("request panicked")
}
