package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rafaelsamenezes/farol/pkg/interner"
)

const (
	metricOpsTotal       = "farol.ops.total"
	metricOpsInflight    = "farol.ops.inflight"
	metricOpDuration     = "farol.op.duration.seconds"
	metricErrorsTotal    = "farol.errors.total"
	metricInternHits     = "farol.intern.hits"
	metricInternMisses   = "farol.intern.misses"
	metricInternedTotal  = "farol.intern.strings"
	metricBytesProcessed = "farol.input.bytes"

	attrOp     = "op"
	attrStatus = "status"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 1ms to 60s: parsing a goto-binary file
// ranges from instant for toy inputs to tens of seconds for full programs.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds the OTel instruments for command operations and the interner.
type Metrics struct {
	opsTotal       metric.Int64Counter
	opsInflight    metric.Int64UpDownCounter
	opDuration     metric.Float64Histogram
	errorsTotal    metric.Int64Counter
	internHits     metric.Int64Counter
	internMisses   metric.Int64Counter
	internedTotal  metric.Int64Counter
	bytesProcessed metric.Int64Counter
}

// metricBuilder accumulates OTel instrument creation errors,
// enabling batch construction with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// NewMetrics creates the farol metric instruments from the given meter.
func NewMetrics(mt metric.Meter) (*Metrics, error) {
	b := &metricBuilder{meter: mt}

	m := &Metrics{
		opsTotal:       b.counter(metricOpsTotal, "Total number of command operations", "{op}"),
		opsInflight:    b.upDownCounter(metricOpsInflight, "Command operations currently running", "{op}"),
		opDuration:     b.histogram(metricOpDuration, "Operation duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:    b.counter(metricErrorsTotal, "Total number of failed operations", "{error}"),
		internHits:     b.counter(metricInternHits, "Intern calls resolved to an existing entry", "{lookup}"),
		internMisses:   b.counter(metricInternMisses, "Intern calls that inserted a new entry", "{lookup}"),
		internedTotal:  b.counter(metricInternedTotal, "Distinct strings stored in the interner", "{string}"),
		bytesProcessed: b.counter(metricBytesProcessed, "Decoded input bytes processed", "By"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return m, nil
}

// BeginOp marks an operation as running and returns a func that unmarks it.
func (m *Metrics) BeginOp(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))

	m.opsInflight.Add(ctx, 1, attrs)

	return func() { m.opsInflight.Add(ctx, -1, attrs) }
}

// RecordOp records a completed command operation with its status and duration.
func (m *Metrics) RecordOp(ctx context.Context, op string, opErr error, duration time.Duration) {
	status := statusOK
	if opErr != nil {
		status = statusError
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	m.opsTotal.Add(ctx, 1, attrs)
	m.opDuration.Record(ctx, duration.Seconds(), attrs)

	if opErr != nil {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// RecordInterner folds a finished interner's counters into the instruments.
func (m *Metrics) RecordInterner(ctx context.Context, it *interner.Interner) {
	stats := it.Stats()

	m.internHits.Add(ctx, int64(stats.Hits))     //nolint:gosec // counters never exceed int64
	m.internMisses.Add(ctx, int64(stats.Misses)) //nolint:gosec // counters never exceed int64
	m.internedTotal.Add(ctx, int64(it.Len()))    //nolint:gosec // counters never exceed int64
}

// RecordInput records the decoded size of a processed input.
func (m *Metrics) RecordInput(ctx context.Context, bytes int) {
	m.bytesProcessed.Add(ctx, int64(bytes))
}
