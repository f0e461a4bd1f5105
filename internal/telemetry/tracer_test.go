package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(Config{Enabled: false, OTLPEndpoint: "localhost:4318"})
	require.NoError(t, err)
	assert.Nil(t, tp)
}

func TestSamplerClampsRate(t *testing.T) {
	params := sdktrace.SamplingParameters{TraceID: trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}}

	// An out-of-range rate falls back to sampling everything.
	assert.Equal(t, sdktrace.RecordAndSample, Sampler(7).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.Drop, Sampler(0).ShouldSample(params).Decision)
}
