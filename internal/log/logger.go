package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a zerolog logger with the given level string (debug, info, warn, error).
// When file is non-empty, JSON lines are also written to a rotating log file.
func New(level, file string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl := parseLevel(level)
	var output io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	if file != "" {
		output = zerolog.MultiLevelWriter(output, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	logger := zerolog.New(output).Level(lvl).With().Timestamp().Logger()
	return &logger
}

// Nop returns a logger that discards everything; handy for tests.
func Nop() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
