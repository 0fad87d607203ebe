package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New creates a slog.Logger using the provided level and format.
// Format "text" renders tinted console output; "json" renders one
// JSON object per line.
func New(level, format string, out io.Writer) (*slog.Logger, error) {
	parsedLevel := parseLevel(level)

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "console":
		handler = tint.NewHandler(out, &tint.Options{
			Level:      parsedLevel,
			TimeFormat: time.RFC3339,
		})
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parsedLevel})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	return slog.New(handler), nil
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
