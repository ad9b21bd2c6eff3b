package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "deliveryhub"

// Metrics holds all DeliveryHub metric instruments.
type Metrics struct {
	DeliveriesCreated   metric.Int64Counter
	StatusTransitions   metric.Int64Counter
	TransitionsRejected metric.Int64Counter
	DeliveriesArchived  metric.Int64Counter
	DeliveryDuration    metric.Float64Histogram
	EarningsArchived    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DeliveriesCreated, err = meter.Int64Counter("deliveryhub.deliveries.created",
		metric.WithDescription("Number of deliveries created"))
	if err != nil {
		return nil, err
	}

	m.StatusTransitions, err = meter.Int64Counter("deliveryhub.deliveries.transitions",
		metric.WithDescription("Number of committed status transitions"))
	if err != nil {
		return nil, err
	}

	m.TransitionsRejected, err = meter.Int64Counter("deliveryhub.deliveries.transitions_rejected",
		metric.WithDescription("Number of status transitions rejected by the state machine"))
	if err != nil {
		return nil, err
	}

	m.DeliveriesArchived, err = meter.Int64Counter("deliveryhub.history.archived",
		metric.WithDescription("Number of deliveries archived to history"))
	if err != nil {
		return nil, err
	}

	m.DeliveryDuration, err = meter.Float64Histogram("deliveryhub.delivery.duration_seconds",
		metric.WithDescription("Time from creation to delivered in seconds"))
	if err != nil {
		return nil, err
	}

	m.EarningsArchived, err = meter.Float64Histogram("deliveryhub.history.earnings",
		metric.WithDescription("Earnings per archived delivery"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
