package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedProvider(t *testing.T) (*Provider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	p, err := NewProvider(Config{
		ServiceName:    "warden",
		Enabled:        true,
		SamplingRate:   1,
		SpanProcessors: []sdktrace.SpanProcessor{rec},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, rec
}

func TestSpans(t *testing.T) {
	p, rec := newTracedProvider(t)
	ctx := context.Background()

	_, span := p.SpanLogin(ctx)
	SetUser(span, "user-1")
	EndSpan(span, nil)

	_, span = p.SpanRecovery(ctx, "reset")
	EndSpan(span, errors.New("bad token"))

	ended := rec.Ended()
	require.Len(t, ended, 2)

	login := ended[0]
	assert.Equal(t, "warden.login", login.Name())
	assert.Equal(t, codes.Ok, login.Status().Code)
	assert.Contains(t, login.Attributes(), attribute.String(AttrUserID, "user-1"))

	reset := ended[1]
	assert.Equal(t, "warden.recovery.reset", reset.Name())
	assert.Equal(t, codes.Error, reset.Status().Code)
	assert.Equal(t, "bad token", reset.Status().Description)
	assert.Contains(t, reset.Attributes(), attribute.String(AttrStage, "reset"))
	require.Len(t, reset.Events(), 1, "error is recorded as an event")
}

func TestSpans_NeverSample(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	p, err := NewProvider(Config{
		ServiceName:    "warden",
		Enabled:        true,
		SamplingRate:   0,
		SpanProcessors: []sdktrace.SpanProcessor{rec},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := p.SpanRegistration(context.Background())
	EndSpan(span, nil)
	assert.Empty(t, rec.Ended())
}

func TestSpans_Disabled(t *testing.T) {
	var p *Provider
	ctx, span := p.SpanLogout(context.Background())
	require.NotNil(t, span)
	assert.False(t, span.SpanContext().IsValid())
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("ignored"))

	disabled, err := NewProvider(Config{ServiceName: "warden"})
	require.NoError(t, err)
	_, span = disabled.SpanLogin(context.Background())
	assert.False(t, span.IsRecording())
	EndSpan(span, nil)
}
