package telemetry

import (
	"context"
	"log/slog"
	"os"
)

// NewLogger builds the service logger: JSON lines on stdout, stamped with the
// active trace and span ids so a poll cycle's logs can be joined to its trace.
func NewLogger(level slog.Level) *slog.Logger {
	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(&traceHandler{base: base})
}

// traceHandler decorates another slog.Handler with trace correlation. The
// trace_id/span_id pair always lands at the record's root, outside any group
// opened by the caller.
type traceHandler struct {
	base   slog.Handler
	attrs  []slog.Attr
	groups []string
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	out := h.base

	if span := spanAttrs(ctx); len(span) > 0 {
		out = out.WithAttrs(span)
	}
	if len(h.attrs) > 0 {
		out = out.WithAttrs(h.attrs)
	}
	for _, group := range h.groups {
		out = out.WithGroup(group)
	}

	return out.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &traceHandler{base: h.base, attrs: merged, groups: h.groups}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)

	return &traceHandler{base: h.base, attrs: h.attrs, groups: groups}
}

func spanAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if traceID := TraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if spanID := SpanID(ctx); spanID != "" {
		attrs = append(attrs, slog.String("span_id", spanID))
	}
	return attrs
}
