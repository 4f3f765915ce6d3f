package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"climate-server/internal/config"
)

// secretKeys are attribute keys whose values never reach the log output.
var secretKeys = map[string]bool{
	"dbDSN": true,
	"dsn":   true,
}

func New(cfg config.Config, version string, appName string) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, version, appName)
}

// NewWithWriter builds the process logger on w: colored tint output for dev
// builds, JSON records tagged with version and env otherwise. Release builds
// add source locations only at debug level.
func NewWithWriter(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:       cfg.LogLevel,
			AddSource:   true,
			TimeFormat:  time.Kitchen,
			NoColor:     cfg.AppEnv == "prod",
			ReplaceAttr: redact,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       cfg.LogLevel,
		AddSource:   cfg.LogLevel <= slog.LevelDebug,
		ReplaceAttr: redact,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if secretKeys[a.Key] && a.Value.String() != "" {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
