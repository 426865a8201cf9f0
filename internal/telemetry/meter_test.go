package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	mp, handler, err := NewMeterProvider(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, mp)
	assert.Nil(t, handler)
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	t.Parallel()

	mp, handler, err := NewMeterProvider(context.Background(),
		WithMetricsEnabled(true),
		WithMeterServiceName("repolens-test"),
		WithMeterServiceVersion("0.0.1"),
	)
	require.NoError(t, err)
	require.NotNil(t, handler)

	// Record something so the scrape output is non-trivial.
	counter, err := mp.Meter("test").Int64Counter("test_events_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1, metric.WithAttributes())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_events_total")
}
