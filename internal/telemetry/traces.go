package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrUserID = "warden.user.id"
	AttrStage  = "warden.recovery.stage"
)

// Tracer returns the service tracer, or a no-op tracer when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func (p *Provider) SpanLogin(ctx context.Context) (context.Context, trace.Span) {
	return p.StartSpan(ctx, "warden.login")
}

func (p *Provider) SpanRegistration(ctx context.Context) (context.Context, trace.Span) {
	return p.StartSpan(ctx, "warden.registration")
}

func (p *Provider) SpanLogout(ctx context.Context) (context.Context, trace.Span) {
	return p.StartSpan(ctx, "warden.logout")
}

// SpanRecovery starts a span for a recovery stage ("initiate" or "reset").
func (p *Provider) SpanRecovery(ctx context.Context, stage string) (context.Context, trace.Span) {
	return p.StartSpan(ctx, "warden.recovery."+stage, attribute.String(AttrStage, stage))
}

// SetUser tags span with the account it acted on.
func SetUser(span trace.Span, userID string) {
	if span == nil || userID == "" {
		return
	}
	span.SetAttributes(attribute.String(AttrUserID, userID))
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
