package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "intentmarket"

// Metrics holds all IntentMarket metric instruments.
type Metrics struct {
	FindRuns        metric.Int64Counter
	MatchesCreated  metric.Int64Counter
	MatchesFailed   metric.Int64Counter
	MatchScore      metric.Float64Histogram
	FindDuration    metric.Float64Histogram
	SweepsSkipped   metric.Int64Counter
	IntentsIngested metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.FindRuns, err = meter.Int64Counter("intentmarket.find.runs",
		metric.WithDescription("Number of find-matches runs"))
	if err != nil {
		return nil, err
	}

	m.MatchesCreated, err = meter.Int64Counter("intentmarket.matches.created",
		metric.WithDescription("Number of match rows inserted"))
	if err != nil {
		return nil, err
	}

	m.MatchesFailed, err = meter.Int64Counter("intentmarket.matches.failed",
		metric.WithDescription("Number of candidate upserts that failed"))
	if err != nil {
		return nil, err
	}

	m.MatchScore, err = meter.Float64Histogram("intentmarket.match.score",
		metric.WithDescription("Score of persisted matches"),
		metric.WithExplicitBucketBoundaries(0.15, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1))
	if err != nil {
		return nil, err
	}

	m.FindDuration, err = meter.Float64Histogram("intentmarket.find.duration_seconds",
		metric.WithDescription("Find-matches duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.SweepsSkipped, err = meter.Int64Counter("intentmarket.sweep.skipped",
		metric.WithDescription("Sweep ticks dropped because the previous sweep was still running"))
	if err != nil {
		return nil, err
	}

	m.IntentsIngested, err = meter.Int64Counter("intentmarket.ingest.created",
		metric.WithDescription("Intents created from external sources"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
