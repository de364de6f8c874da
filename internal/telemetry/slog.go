package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level is shared by every handler SetupLogger installs so SetLevel can change
// verbosity at runtime without rebuilding the logger.
var level = new(slog.LevelVar)

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" (case-insensitive)
// to a slog level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger configures the global slog default logger.
//
// format: "json" selects the JSONHandler (production); anything else the TextHandler.
// level: see ParseLevel.
func SetupLogger(format, lvl string) {
	setupLogger(os.Stdout, format, lvl)
	slog.Info("logger initialised", "format", format, "level", level.Level().String())
}

func setupLogger(w io.Writer, format, lvl string) {
	level.Set(ParseLevel(lvl))
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level.Level() == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLevel changes the minimum level of the installed logger. It is called when the
// config file is edited.
func SetLevel(lvl string) {
	next := ParseLevel(lvl)
	if next == level.Level() {
		return
	}
	level.Set(next)
	slog.Info("log level changed", "level", next.String())
}
