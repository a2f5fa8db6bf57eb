package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	logger, level, err := NewLogger("debug", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Sync() })
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	level.SetLevel(zapcore.WarnLevel)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, level, err = NewLogger("", false)
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level.Level())

	_, _, err = NewLogger("loud", false)
	assert.Error(t, err)
}

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Observe("evolve", OutcomeOK, 3*time.Millisecond)
	m.Observe("evolve", OutcomeOK, time.Millisecond)
	m.Observe("heal", OutcomeNotFound, 0)
	m.SetCached(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("evolve", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("heal", OutcomeNotFound)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CachedEntities))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.Observe("evolve", OutcomeOK, 0)
		nilMetrics.SetCached(1)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Observe("encode", OutcomeOK, time.Millisecond)
	m.SetCached(2)

	path := filepath.Join(t.TempDir(), "dnasigil.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dnasigil_operations_total{op="encode",outcome="ok"} 1`)
	assert.Contains(t, string(data), "dnasigil_cached_entities 2")

	assert.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "missing", "dnasigil.prom"), reg))
}

func TestSpansWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "encode", attribute.String("entity.id", "e1"))
	require.NotNil(t, ctx)
	assert.NotPanics(t, func() { EndSpan(span, errors.New("boom")) })

	_, span = StartSpan(context.Background(), "heal")
	assert.NotPanics(t, func() { EndSpan(span, nil) })
}
