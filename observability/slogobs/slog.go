package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leofalp/chatwire/observability"
)

// Observer routes spans and log records through a *slog.Logger.
type Observer struct {
	logger *slog.Logger
}

var _ observability.Provider = (*Observer)(nil)

// New builds an Observer.
//
//	observer := slogobs.New(slogobs.WithFormat(slogobs.FormatJSON), slogobs.WithLevel(slog.LevelDebug))
func New(opts ...Option) *Observer {
	cfg := applyOptions(opts...)
	if cfg.logger != nil {
		return &Observer{logger: cfg.logger}
	}

	handlerOptions := &slog.HandlerOptions{Level: cfg.level, ReplaceAttr: renameTraceLevel}
	var handler slog.Handler
	if cfg.format == FormatJSON {
		handler = slog.NewJSONHandler(cfg.output, handlerOptions)
	} else {
		handler = slog.NewTextHandler(cfg.output, handlerOptions)
	}
	return &Observer{logger: slog.New(handler)}
}

// renameTraceLevel prints LevelTrace as "TRACE" instead of "DEBUG-4".
func renameTraceLevel(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.LevelKey {
		if level, ok := attr.Value.Any().(slog.Level); ok && level == LevelTrace {
			attr.Value = slog.StringValue("TRACE")
		}
	}
	return attr
}

// StartSpan logs the span start and returns ctx with the span attached.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		name:      name,
		startTime: time.Now(),
		logger:    o.logger,
		attrs:     attrs,
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "Span started",
		append([]slog.Attr{slog.String("span", name)}, toSlogAttrs(attrs)...)...)
	return observability.ContextWithSpan(ctx, span), span
}

func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, LevelTrace, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelDebug, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelWarn, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelError, msg, toSlogAttrs(attrs)...)
}

type slogSpan struct {
	mu        sync.Mutex
	name      string
	startTime time.Time
	logger    *slog.Logger
	attrs     []observability.Attribute
	status    observability.StatusCode
}

// End logs the span with its elapsed time and every accumulated attribute.
func (s *slogSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := slog.LevelDebug
	if s.status == observability.StatusError {
		level = slog.LevelWarn
	}
	logAttrs := []slog.Attr{
		slog.String("span", s.name),
		slog.Duration("duration", time.Since(s.startTime)),
	}
	s.logger.LogAttrs(context.Background(), level, "Span ended", append(logAttrs, toSlogAttrs(s.attrs)...)...)
}

func (s *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *slogSpan) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = code
	statusName := "unset"
	switch code {
	case observability.StatusOK:
		statusName = "ok"
	case observability.StatusError:
		statusName = "error"
	}
	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, statusName))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

func (s *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrs = append(s.attrs, observability.Error(err))
	s.logger.LogAttrs(context.Background(), slog.LevelError, "Span error",
		slog.String("span", s.name),
		slog.String("error", err.Error()),
	)
}

func (s *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("span", s.name),
		slog.String("event", name),
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span event", append(logAttrs, toSlogAttrs(attrs)...)...)
}

func toSlogAttrs(attrs []observability.Attribute) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, slog.Any(attr.Key, attr.Value))
	}
	return out
}
