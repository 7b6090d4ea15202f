package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one step of a request or client flow (an upload, a probe, a
// page fetch) and logs its outcome when ended.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span from ctx. A trace id is created when the
// context does not carry one yet.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	attrs := []any{slog.String("span_id", spanID), slog.String("span_name", name)}
	if parent := SpanIDFromContext(ctx); parent != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent))
	}
	logger = logger.With(attrs...)

	ctx = WithSpanID(WithLogger(ctx, logger), spanID)
	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// End logs completion; a non-nil err is logged at warn level.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if err != nil {
		s.logger.Warn("span failed", elapsed, slog.Any("error", err))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
