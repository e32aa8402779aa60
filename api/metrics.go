package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "taskboard-api/api"
	boardEventName   = "taskboard.request"
	boardEventDomain = "tasks"
)

func routeForOp(op string) string {
	switch op {
	case "data":
		return "/api/data"
	case "create":
		return "/api/tasks"
	case "update", "delete":
		return "/api/tasks/:id"
	default:
		return "/api"
	}
}

// boardRequestMetrics captures per-request timings on the board's hot paths
// and emits them as one structured observability event plus an OTel span.
type boardRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	op     string
	start  time.Time

	decodeDuration time.Duration
	fetchDuration  time.Duration
	commitDuration time.Duration
	errorStage     string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger, op string) (*boardRequestMetrics, context.Context) {
	m := &boardRequestMetrics{logger: logger, op: op, start: time.Now()}
	if ctx == nil {
		return m, nil
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, boardEventName,
		trace.WithAttributes(
			attribute.String("http.route", routeForOp(op)),
			attribute.String("taskboard.op", op),
		))
	m.span = span
	return m, spanCtx
}

func (m *boardRequestMetrics) ObserveDecode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.decodeDuration = duration
}

func (m *boardRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *boardRequestMetrics) ObserveCommit(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.commitDuration = duration
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finishes the span and writes the observability event. Call it exactly
// once, after the response status is known.
func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := map[string]any{
		"http.route":       routeForOp(m.op),
		"http.status_code": status,
		"taskboard.op":     m.op,
		"total_ms":         durationToMillis(time.Since(m.start)),
	}
	if m.decodeDuration > 0 {
		attrs["decode_ms"] = durationToMillis(m.decodeDuration)
	}
	if m.fetchDuration > 0 {
		attrs["fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.commitDuration > 0 {
		attrs["commit_ms"] = durationToMillis(m.commitDuration)
	}
	if m.errorStage != "" {
		attrs["error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error"] = err.Error()
	}

	if m.span != nil {
		m.span.SetAttributes(attribute.Int("http.status_code", status))
		if m.errorStage != "" {
			m.span.SetAttributes(attribute.String("taskboard.error_stage", m.errorStage))
		}
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		} else if m.errorStage != "" {
			m.span.SetStatus(codes.Error, m.errorStage)
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	m.logger.WithFields(log.Fields{
		"event.name":   boardEventName,
		"event.domain": boardEventDomain,
		"attributes":   attrs,
	}).Info("observability.event")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
