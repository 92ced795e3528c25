package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joelsfoster/gizmo/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 50
	logMaxBackups = 5
	logMaxAgeDays = 14
)

// setupLogging configures the global zerolog logger from LOG_LEVEL,
// LOG_PRETTY and LOG_FILE. The returned closer flushes the rotating file.
func setupLogging() io.Closer {
	level, err := zerolog.ParseLevel(strings.ToLower(envOr(common.EnvLogLevel, common.DefaultLogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	var console io.Writer = os.Stderr
	if isTrue(os.Getenv(common.EnvLogPretty)) {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	var file *lumberjack.Logger
	writers := []io.Writer{console}
	if path := os.Getenv(common.EnvLogFile); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("cannot create log directory, logging to stderr only")
		} else {
			file = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    logMaxSizeMB,
				MaxBackups: logMaxBackups,
				MaxAge:     logMaxAgeDays,
				Compress:   true,
			}
			writers = append(writers, file)
		}
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	if file == nil {
		return io.NopCloser(nil)
	}
	return file
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
