package main

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/MrWong99/intervue/internal/config"
)

// logging bundles the process logger with its adjustable level.
type logging struct {
	logger *slog.Logger
	level  *slog.LevelVar
	pretty *log.Logger
}

func newLogger(format config.LogFormat, level config.LogLevel) *logging {
	l := &logging{level: new(slog.LevelVar)}
	l.level.Set(slogLevel(level))

	opts := &slog.HandlerOptions{Level: l.level}
	switch format {
	case config.LogFormatText:
		l.logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	case config.LogFormatPretty:
		l.pretty = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Level:           log.Level(l.level.Level()),
		})
		l.logger = slog.New(l.pretty)
	default:
		l.logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return l
}

// SetLevel changes the minimum level at runtime.
func (l *logging) SetLevel(level config.LogLevel) {
	lvl := slogLevel(level)
	l.level.Set(lvl)
	if l.pretty != nil {
		l.pretty.SetLevel(log.Level(lvl))
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
