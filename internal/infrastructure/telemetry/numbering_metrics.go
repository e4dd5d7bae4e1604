package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// NumberingMetrics counts document number allocations. A nil
// *NumberingMetrics records nothing.
type NumberingMetrics struct {
	issued    *Counter
	conflicts *Counter
	failures  *Counter
	retries   *Counter
	latency   *Histogram
}

// NewNumberingMetrics creates the numbering instruments on meter.
func NewNumberingMetrics(meter metric.Meter) (*NumberingMetrics, error) {
	var (
		m   NumberingMetrics
		err error
	)
	if m.issued, err = NewCounter(meter, "erp_document_numbers_issued_total",
		"Document numbers issued", "{numbers}"); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter, "erp_document_number_conflicts_total",
		"Allocations that ended in a sequence conflict", "{conflicts}"); err != nil {
		return nil, err
	}
	if m.failures, err = NewCounter(meter, "erp_document_number_failures_total",
		"Allocations that failed for other reasons", "{failures}"); err != nil {
		return nil, err
	}
	if m.retries, err = NewCounter(meter, "erp_document_number_retries_total",
		"Allocation retries after a conflict", "{retries}"); err != nil {
		return nil, err
	}
	if m.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "erp_document_number_allocation_seconds",
		Description: "Time spent allocating a document number",
		Unit:        "s",
		Boundaries:  []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordAllocation records the outcome of one allocation.
func (m *NumberingMetrics) RecordAllocation(ctx context.Context, docType string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attr := attribute.String("document_type", docType)
	m.latency.RecordDuration(ctx, elapsed, attr)
	switch {
	case err == nil:
		m.issued.Inc(ctx, attr)
	case errors.Is(err, shared.ErrSequenceConflict):
		m.conflicts.Inc(ctx, attr)
	default:
		m.failures.Inc(ctx, attr)
	}
}

// RecordRetry records a retried allocation.
func (m *NumberingMetrics) RecordRetry(ctx context.Context, docType string) {
	if m == nil {
		return
	}
	m.retries.Inc(ctx, attribute.String("document_type", docType))
}
