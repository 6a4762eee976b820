// Package telemetry exposes the auth counters recorded by the session
// manager. All record methods are nil-safe so telemetry stays optional.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sign-in outcome attribute values.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeRateLimited        = "rate_limited"
	OutcomeUnavailable        = "service_unavailable"
)

// Metrics holds the auth instrumentation.
type Metrics struct {
	signIns     metric.Int64Counter
	refreshes   metric.Int64Counter
	signOuts    metric.Int64Counter
	rateLimited metric.Int64Counter
}

// NewMetrics registers the auth counters on provider's meter.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("authplane.session")
	signIns, err := meter.Int64Counter("auth.sign_in.attempts",
		metric.WithDescription("Sign-in attempts by outcome"))
	if err != nil {
		return nil, err
	}
	refreshes, err := meter.Int64Counter("auth.session.refreshes",
		metric.WithDescription("Session refreshes by outcome"))
	if err != nil {
		return nil, err
	}
	signOuts, err := meter.Int64Counter("auth.sign_outs",
		metric.WithDescription("Sign-out operations"))
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("auth.rate_limited",
		metric.WithDescription("Attempts rejected by the rate limiter"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		signIns:     signIns,
		refreshes:   refreshes,
		signOuts:    signOuts,
		rateLimited: rateLimited,
	}, nil
}

// RecordSignIn counts one sign-in attempt with its outcome.
func (m *Metrics) RecordSignIn(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.signIns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == OutcomeRateLimited {
		m.rateLimited.Add(ctx, 1)
	}
}

// RecordRefresh counts one refresh attempt.
func (m *Metrics) RecordRefresh(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeUnavailable
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSignOut counts one sign-out.
func (m *Metrics) RecordSignOut(ctx context.Context) {
	if m == nil {
		return
	}
	m.signOuts.Add(ctx, 1)
}
