package telemetry

import (
	"context"

	"github.com/erp/budget/internal/domain/budget"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BudgetMetrics records consumption gateway outcomes.
// It implements the gateway's ConsumptionRecorder.
type BudgetMetrics struct {
	logger *zap.Logger

	postedTotal   *Counter
	rejectedTotal *Counter
	postedAmount  *Histogram
	reversalTotal *Counter
}

// AmountBuckets are bucket boundaries for posted amounts in base currency units.
var AmountBuckets = []float64{10, 100, 1000, 10000, 100000, 1000000, 10000000}

// NewBudgetMetrics creates the budget instruments on the given meter.
func NewBudgetMetrics(meter metric.Meter, logger *zap.Logger) (*BudgetMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BudgetMetrics{logger: logger}

	var err error
	bm.postedTotal, err = NewCounter(
		meter,
		"boq_consumption_posted_total",
		"Total number of consumptions posted to the ledger",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	bm.rejectedTotal, err = NewCounter(
		meter,
		"boq_consumption_rejected_total",
		"Total number of consumption requests rejected",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	bm.reversalTotal, err = NewCounter(
		meter,
		"boq_consumption_reversal_total",
		"Total number of reversal entries posted",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	bm.postedAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "boq_consumption_amount",
		Description: "Distribution of posted amounts in base currency",
		Unit:        "{currency}",
		Boundaries:  AmountBuckets,
	})
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordPosted counts one ledger entry and records its absolute amount.
func (bm *BudgetMetrics) RecordPosted(ctx context.Context, entry *budget.ConsumptionEntry, reason budget.DecisionReason) {
	if entry == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(entry.TenantID.String()),
		AttrSourceSystem.String(entry.SourceSystem),
		AttrDecision.String(string(reason)),
	}
	bm.postedTotal.Inc(ctx, attrs...)
	if reason == budget.ReasonReversal {
		bm.reversalTotal.Inc(ctx, attrs...)
	}
	amount, _ := entry.Amount.Abs().Float64()
	bm.postedAmount.Record(ctx, amount, AttrCurrency.String(string(entry.Currency)))
}

// RecordRejected counts a rejected request by error code.
func (bm *BudgetMetrics) RecordRejected(ctx context.Context, code string) {
	bm.rejectedTotal.Inc(ctx, AttrErrorCode.String(code))
	bm.logger.Debug("Consumption rejected", zap.String("code", code))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBudgetMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
