package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewBudgetMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBudgetMetrics(nil, nil)

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBudgetMetrics: meter cannot be nil", err.Error())
}

func TestBudgetMetrics_NoopMeter(t *testing.T) {
	bm, err := telemetry.NewBudgetMetrics(noop.NewMeterProvider().Meter("test"), nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		bm.RecordPosted(context.Background(), nil, budget.ReasonWithinBudget)
		bm.RecordRejected(context.Background(), budget.CodeAmountExceeded)
	})
}

func TestBudgetMetrics_Recording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	bm, err := telemetry.NewBudgetMetrics(provider.Meter("budget"), nil)
	require.NoError(t, err)

	ctx := context.Background()
	entry := &budget.ConsumptionEntry{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		SourceSystem: "purchase",
		Amount:       decimal.NewFromInt(250),
		Currency:     "USD",
	}
	reversal := &budget.ConsumptionEntry{
		ID:           uuid.New(),
		TenantID:     entry.TenantID,
		SourceSystem: "purchase",
		Amount:       decimal.NewFromInt(-50),
		Currency:     "USD",
	}

	bm.RecordPosted(ctx, entry, budget.ReasonWithinBudget)
	bm.RecordPosted(ctx, reversal, budget.ReasonReversal)
	bm.RecordRejected(ctx, budget.CodeAmountExceeded)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["boq_consumption_posted_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["boq_consumption_reversal_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["boq_consumption_rejected_total"]))

	hist, ok := metrics["boq_consumption_amount"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, float64(300), hist.DataPoints[0].Sum)
}
