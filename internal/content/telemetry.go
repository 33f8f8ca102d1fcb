package content

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/almarpuit/site/internal/content"

var tracer = otel.Tracer(instrumentationName)

type instruments struct {
	refetches       metric.Int64Counter
	reconciliations metric.Int64Counter
}

func newInstruments(logger *zap.Logger) instruments {
	meter := otel.GetMeterProvider().Meter(instrumentationName)
	var ins instruments
	var err error
	ins.refetches, err = meter.Int64Counter(
		"content.refetch.count",
		metric.WithDescription("Full re-fetches triggered by change notifications"),
	)
	if err != nil {
		logger.Warn("content: unable to register refetch metric", zap.Error(err))
	}
	ins.reconciliations, err = meter.Int64Counter(
		"content.reconcile.count",
		metric.WithDescription("Re-fetches forced by failed optimistic writes"),
	)
	if err != nil {
		logger.Warn("content: unable to register reconcile metric", zap.Error(err))
	}
	return ins
}

func (i instruments) refetched(ctx context.Context, table, key string) {
	if i.refetches != nil {
		i.refetches.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table), attribute.String("section", key)))
	}
}

func (i instruments) reconciled(ctx context.Context, op, key string) {
	if i.reconciliations != nil {
		i.reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("section", key)))
	}
}

func startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("content.section", key)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
