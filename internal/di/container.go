package di

import (
	"net/http"

	"github.com/1282saa/paperone/internal/config"
	"github.com/1282saa/paperone/internal/generation"
	"github.com/1282saa/paperone/internal/observability"

	"go.uber.org/zap"
)

// Container holds the assembled application.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	LogLevel zap.AtomicLevel
	Handler  http.Handler
	Fallback *generation.TableFallback
	Metrics  *observability.Collector
}

// ApplyConfig pushes the settings that may change at runtime into the live
// components.
func (c *Container) ApplyConfig(cfg *config.Config) {
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		c.LogLevel.SetLevel(level.Level())
	} else {
		c.Logger.Warn("Ignoring invalid log level", zap.String("log_level", cfg.LogLevel))
	}
	c.Fallback.SetEnabled(cfg.Features.FallbackTables)
}
