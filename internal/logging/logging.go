// Package logging points the global zerolog logger to the configured outputs.
package logging

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m1k1o/go-portal/internal/config"
)

type Output struct {
	file   *lumberjack.Logger
	hangup chan os.Signal
	done   chan struct{}
}

// Setup replaces the global logger. Close the returned output on exit.
func Setup(cfg config.Log) *Output {
	out := &Output{}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if cfg.File != "" {
		out.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxAge:     cfg.MaxAge,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, out.file)
		out.rotateOnHangup()
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(io.MultiWriter(writers...))

	SetLevel(cfg.Level)

	log.Info().
		Str("level", zerolog.GlobalLevel().String()).
		Bool("console", cfg.Console).
		Str("file", cfg.File).
		Msg("logging configured")

	return out
}

func SetLevel(name string) {
	level, known := parseLevel(name)
	zerolog.SetGlobalLevel(level)
	if !known {
		log.Warn().Str("log-level", name).Msg("unknown log level, using info")
	}
}

// parseLevel falls back to info, reporting whether the level was recognized.
func parseLevel(name string) (zerolog.Level, bool) {
	if name == "" {
		return zerolog.InfoLevel, true
	}

	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, false
	}

	return level, true
}

func (o *Output) rotateOnHangup() {
	o.hangup = make(chan os.Signal, 1)
	o.done = make(chan struct{})
	signal.Notify(o.hangup, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-o.hangup:
				if err := o.file.Rotate(); err != nil {
					log.Err(err).Msg("unable to rotate log file")
				}
			case <-o.done:
				return
			}
		}
	}()
}

func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}

	signal.Stop(o.hangup)
	close(o.done)
	return o.file.Close()
}
