package telemetry

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTraceparentFormat(t *testing.T) {
	parts := strings.Split(NewTraceparent(), "-")
	require.Len(t, parts, 4)
	assert.Equal(t, "00", parts[0])
	assert.Len(t, parts[1], 32)
	assert.Len(t, parts[2], 16)
	assert.Equal(t, "01", parts[3])

	// An all-zero trace or parent id makes the header invalid.
	assert.NotEqual(t, strings.Repeat("0", 32), parts[1])
	assert.NotEqual(t, strings.Repeat("0", 16), parts[2])
}

func TestNewTraceparentExtractable(t *testing.T) {
	header := NewTraceparent()

	carrier := propagation.HeaderCarrier(http.Header{})
	carrier.Set("traceparent", header)
	ctx := propagation.TraceContext{}.Extract(context.Background(), carrier)

	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsSampled())
	assert.Equal(t, strings.Split(header, "-")[1], sc.TraceID().String())
}

func TestNewTraceparentFreshTraceIDs(t *testing.T) {
	assert.NotEqual(t, NewTraceparent(), NewTraceparent())
}
