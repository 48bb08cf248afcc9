package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "intentmarket"

// StartFindSpan starts a span for one find-matches run.
func StartFindSpan(ctx context.Context, intentID, pool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "find_matches",
		trace.WithAttributes(
			attribute.String("intent.id", intentID),
			attribute.String("match.pool", pool),
		),
	)
}

// StartSweepSpan starts a span for a full sweep pass.
func StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "sweep")
}

// StartIngestSpan starts a span for fetching one external source.
func StartIngestSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ingest",
		trace.WithAttributes(attribute.String("ingest.source", source)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
