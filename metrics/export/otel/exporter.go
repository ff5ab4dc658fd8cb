package otel

import (
	"context"
	"errors"
	"fmt"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *usersvc.Engine.
type MetricsSource interface {
	MetricsSnapshot() usersvc.MetricsSnapshot
}

type observedCounter struct {
	id         usersvc.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram mirrors one engine histogram as cumulative bucket
// counters plus a count and a sum in seconds.
type observedHistogram struct {
	id      usersvc.MetricID
	buckets []metric.Int64ObservableCounter
	count   metric.Int64ObservableCounter
	sum     metric.Float64ObservableCounter
}

// OTelExporter publishes engine metrics through observable instruments.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
}

// NewOTelExporter registers instruments on meter that read from source.
func NewOTelExporter(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, err := newObservedHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		exporter.histograms = append(exporter.histograms, h)
		observables = append(observables, h.count, h.sum)
		for _, b := range h.buckets {
			observables = append(observables, b)
		}
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func newObservedHistogram(meter metric.Meter, def internaldefs.HistogramDef) (observedHistogram, error) {
	h := observedHistogram{id: def.ID}
	for _, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return h, fmt.Errorf("create histogram bucket %s: %w", name, err)
		}
		h.buckets = append(h.buckets, ins)
	}

	count, err := meter.Int64ObservableCounter(def.Name+"_count", metric.WithDescription(def.Help))
	if err != nil {
		return h, fmt.Errorf("create histogram count %s: %w", def.Name, err)
	}
	sum, err := meter.Float64ObservableCounter(def.Name+"_sum", metric.WithDescription(def.Help), metric.WithUnit("s"))
	if err != nil {
		return h, fmt.Errorf("create histogram sum %s: %w", def.Name, err)
	}
	h.count = count
	h.sum = sum
	return h, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		hs, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(hs.Buckets)
		for i, ins := range h.buckets {
			observer.ObserveInt64(ins, int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(hs.Count))
		observer.ObserveFloat64(h.sum, hs.Sum.Seconds())
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
