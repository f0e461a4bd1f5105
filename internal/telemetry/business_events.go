package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const businessTracerName = "sportsocial.business"

// StartMessageSpan opens a span around persisting and delivering one message.
func StartMessageSpan(ctx context.Context, messageType, senderID, targetID string) (context.Context, trace.Span) {
	return otel.Tracer(businessTracerName).Start(ctx, "message.send",
		trace.WithAttributes(
			attribute.String("message.type", messageType),
			attribute.String("message.sender_id", senderID),
			attribute.String("message.target_id", targetID),
		),
	)
}

// StartNotificationSpan opens a span around creating one notification.
func StartNotificationSpan(ctx context.Context, notificationType, userID string) (context.Context, trace.Span) {
	return otel.Tracer(businessTracerName).Start(ctx, "notification.create",
		trace.WithAttributes(
			attribute.String("notification.type", notificationType),
			attribute.String("notification.user_id", userID),
		),
	)
}

// StartFanOutSpan opens a span around a nearby-post fan-out.
func StartFanOutSpan(ctx context.Context, postID, sport string) (context.Context, trace.Span) {
	return otel.Tracer(businessTracerName).Start(ctx, "notification.fan_out",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("post.sport", sport),
		),
	)
}

// EndSpan records err (if any) and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
