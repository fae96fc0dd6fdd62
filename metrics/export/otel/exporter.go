package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/dossier-crm/teamauth"
	"github.com/dossier-crm/teamauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *teamauth.Engine.
type MetricsSource interface {
	MetricsSnapshot() teamauth.MetricsSnapshot
	AuditDropped() uint64
}

type counterInstrument struct {
	id  teamauth.MetricID
	ins metric.Int64ObservableCounter
}

// latencyInstruments mirror one engine histogram as a cumulative bucket counter keyed
// by the le attribute, plus count and sum.
type latencyInstruments struct {
	id      teamauth.MetricID
	buckets metric.Int64ObservableCounter
	count   metric.Int64ObservableCounter
	sum     metric.Float64ObservableCounter
}

// Exporter publishes engine metrics as observable instruments on a caller-owned meter.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration

	counters     []counterInstrument
	latencies    []latencyInstruments
	auditDropped metric.Int64ObservableCounter
	leOptions    []metric.ObserveOption
}

// NewExporter creates the instruments and a single callback that reads one engine
// snapshot per collection. Close unregisters the callback.
func NewExporter(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		l := latencyInstruments{id: def.ID}
		var err error
		if l.buckets, err = meter.Int64ObservableCounter(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound.")); err != nil {
			return nil, fmt.Errorf("histogram %s buckets: %w", def.Name, err)
		}
		if l.count, err = meter.Int64ObservableCounter(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count.")); err != nil {
			return nil, fmt.Errorf("histogram %s count: %w", def.Name, err)
		}
		if l.sum, err = meter.Float64ObservableCounter(def.Name+"_sum",
			metric.WithDescription(def.Help+" Sum of samples."), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("histogram %s sum: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, l)
		observables = append(observables, l.buckets, l.count, l.sum)
	}

	for _, label := range internaldefs.BucketLabels() {
		e.leOptions = append(e.leOptions, metric.WithAttributes(attribute.String("le", label)))
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	observables = append(observables, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snapshot.Counters[c.id]))
	}
	for _, l := range e.latencies {
		h, ok := snapshot.Latencies[l.id]
		if !ok {
			continue
		}
		for i, v := range internaldefs.Cumulative(h) {
			o.ObserveInt64(l.buckets, int64(v), e.leOptions[i])
		}
		o.ObserveInt64(l.count, int64(h.Count))
		o.ObserveFloat64(l.sum, h.Sum.Seconds())
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
