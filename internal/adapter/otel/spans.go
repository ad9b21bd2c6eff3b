package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "deliveryhub"

// StartTransitionSpan starts a span for a delivery status transition.
func StartTransitionSpan(ctx context.Context, deliveryID, from, to string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delivery.transition",
		trace.WithAttributes(
			attribute.String("delivery.id", deliveryID),
			attribute.String("delivery.status.from", from),
			attribute.String("delivery.status.to", to),
		),
	)
}

// StartArchiveSpan starts a span for archiving a delivered order to history.
func StartArchiveSpan(ctx context.Context, deliveryID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "history.archive",
		trace.WithAttributes(
			attribute.String("delivery.id", deliveryID),
		),
	)
}
