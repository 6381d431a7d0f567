package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Span times one unit of work: an incoming request or a pipeline stage
// such as a cleaning run or a store refresh. Spans nest through the
// context, so a refresh triggered during request handling shares the
// request's trace id. There is no exporter; the log stream is the
// trace store.
type Span struct {
	TraceID string
	SpanID  string
	Parent  string
	Op      string
	Start   time.Time

	tags map[string]string
	err  error
}

type spanKey struct{}

func StartSpan(ctx context.Context, op string) (context.Context, *Span) {
	span := &Span{
		TraceID: newSpanID(),
		SpanID:  newSpanID(),
		Op:      op,
		Start:   time.Now(),
	}
	if parent := GetSpan(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.Parent = parent.SpanID
	}
	return context.WithValue(ctx, spanKey{}, span), span
}

func GetSpan(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

func (s *Span) SetTag(key, value string) {
	if s.tags == nil {
		s.tags = make(map[string]string)
	}
	s.tags[key] = value
}

func (s *Span) SetError(err error) {
	s.err = err
}

// Finish emits the span as a log line on the default logger.
func (s *Span) Finish() {
	args := []any{
		"trace_id", s.TraceID,
		"span_id", s.SpanID,
		"op", s.Op,
		"duration", time.Since(s.Start),
	}
	if s.Parent != "" {
		args = append(args, "parent_id", s.Parent)
	}
	for k, v := range s.tags {
		args = append(args, k, v)
	}

	if s.err != nil {
		slog.Warn("span failed", append(args, "error", s.err)...)
		return
	}
	slog.Debug("span finished", args...)
}

func newSpanID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
