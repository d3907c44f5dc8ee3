package enginelog

import (
	"context"
	"log/slog"
	"os"
)

// moduleHandler dispatches each record through ModuleConfig before
// delegating to the wrapped slog.Handler, so a module's effective level can
// be tightened or loosened without touching call sites.
type moduleHandler struct {
	next   slog.Handler
	config *ModuleConfig
	module string
}

// NewModuleHandler wraps next with module-aware level filtering.
func NewModuleHandler(next slog.Handler, config *ModuleConfig, module string) slog.Handler {
	return &moduleHandler{next: next, config: config, module: module}
}

func (h *moduleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.config.LevelFor(h.module)
}

func (h *moduleHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.next.Handle(ctx, record)
}

func (h *moduleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &moduleHandler{next: h.next.WithAttrs(attrs), config: h.config, module: h.module}
}

func (h *moduleHandler) WithGroup(name string) slog.Handler {
	return &moduleHandler{next: h.next.WithGroup(name), config: h.config, module: h.module}
}

// New returns a *slog.Logger for the given module name, filtered through
// config's hierarchical level resolution and tagged with a "module" attr.
func New(config *ModuleConfig, module string) *slog.Logger {
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewModuleHandler(base, config, module).WithAttrs([]slog.Attr{slog.String("module", module)})
	return slog.New(handler)
}
