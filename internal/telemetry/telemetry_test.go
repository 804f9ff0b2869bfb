package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestDisabledIsInert(t *testing.T) {
	tel, err := New(&Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	_, err = tel.Snapshot(context.Background())
	assert.Error(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSnapshotSeesRecordedMetrics(t *testing.T) {
	tel, err := New(&Config{
		Enabled:        true,
		ServiceName:    "gandalf-test",
		ServiceVersion: "0.0.0",
	}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	meter := otel.Meter("telemetry-test")
	counter, err := meter.Int64Counter("test.invocations")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rm, err := tel.Snapshot(context.Background())
	require.NoError(t, err)

	var found bool
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "test.invocations" {
				continue
			}
			found = true
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(3), sum.DataPoints[0].Value)
		}
	}
	assert.True(t, found, "recorded counter missing from snapshot")
}

func TestSummarize(t *testing.T) {
	sum := metricdata.Sum[int64]{
		DataPoints: []metricdata.DataPoint[int64]{{Value: 2}, {Value: 5}},
	}
	assert.Equal(t, "sum=7 points=2", summarize(sum))

	hist := metricdata.Histogram[float64]{
		DataPoints: []metricdata.HistogramDataPoint[float64]{
			{Count: 4, Sum: 1.5},
		},
	}
	assert.Equal(t, "count=4 sum=1.5s", summarize(hist))
}
