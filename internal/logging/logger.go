package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Log output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Err returns an error attribute under the "err" key.
var Err = tint.Err //nolint:gochecknoglobals

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q", level)
	}
}

// New returns a logger writing to w. FormatText selects the colourless tint
// console handler; anything else selects JSON. level may be changed later.
func New(w io.Writer, format string, level *slog.LevelVar) *slog.Logger {
	var handler slog.Handler
	if format == FormatText {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
