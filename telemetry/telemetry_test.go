package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	tp, shutdown, err := Init(context.Background(), Config{ServiceName: "gravnav-test", Exporter: "stdout", Writer: &buf})
	require.NoError(t, err)
	assert.Same(t, tp, otel.GetTracerProvider())

	_, span := tp.Tracer("test").Start(context.Background(), "System.Build")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"System.Build"`)
	assert.Contains(t, buf.String(), "gravnav-test")
}

func TestInitNone(t *testing.T) {
	prev := otel.GetTracerProvider()
	tp, shutdown, err := Init(context.Background(), Config{Exporter: "none"})
	require.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, tp)
	assert.Equal(t, prev, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitUnknownExporter(t *testing.T) {
	_, _, err := Init(context.Background(), Config{Exporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestDefaultConfigReadsEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	assert.Equal(t, "none", DefaultConfig().Exporter)
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	assert.Equal(t, "stdout", DefaultConfig().Exporter)
}
