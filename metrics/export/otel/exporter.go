package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is satisfied by *portalauth.Engine.
type Source interface {
	MetricsSnapshot() portalauth.MetricsSnapshot
	AuditDropped() uint64
}

// latencyGauges mirrors one histogram as cumulative bucket gauges plus a
// sample count.
type latencyGauges struct {
	id     portalauth.MetricID
	le     [internaldefs.BucketCount]metric.Int64ObservableGauge
	sample metric.Int64ObservableGauge
}

type Exporter struct {
	source   Source
	reg      metric.Registration
	counters map[portalauth.MetricID]metric.Int64ObservableCounter
	latency  []latencyGauges
}

// NewExporter registers the engine's instruments on meter. Call Close to
// unregister them.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[portalauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var all []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		all = append(all, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		g := latencyGauges{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := fmt.Sprintf("%s_bucket_le_%s", def.Name, suffix)
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Cumulative bucket count."), metric.WithUnit("1"))
			if err != nil {
				return nil, fmt.Errorf("otel: gauge %s: %w", name, err)
			}
			g.le[i] = ins
			all = append(all, ins)
		}
		sample, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("otel: gauge %s_count: %w", def.Name, err)
		}
		g.sample = sample
		all = append(all, sample)
		e.latency = append(e.latency, g)
	}

	reg, err := meter.RegisterCallback(e.observe, all...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	e.reg = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		v := snap.Counters[id]
		if id == portalauth.MetricAuditDropped {
			v = e.source.AuditDropped()
		}
		o.ObserveInt64(c, int64(v))
	}
	for _, g := range e.latency {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[g.id]))
		for i := range cum {
			o.ObserveInt64(g.le[i], int64(cum[i]))
		}
		o.ObserveInt64(g.sample, int64(cum[internaldefs.BucketCount-1]))
	}
	return nil
}

// Close unregisters the callback. It is safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.reg == nil {
		return nil
	}
	return e.reg.Unregister()
}
