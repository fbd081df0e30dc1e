// SPDX-License-Identifier: MIT

// Package observe exports runtime counters as OpenTelemetry metrics. The
// capture path and the session watcher already keep atomic counters, so
// every instrument here is observable: values are read on collection and the
// hot paths never call into the SDK.
package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"

	"nowplaying/internal/audio"
	"nowplaying/internal/session"
)

// meterName is the instrumentation scope for all nowplaying metrics.
const meterName = "nowplaying"

// PipelineSource is satisfied by *audio.Pipeline.
type PipelineSource interface {
	Stats() audio.Stats
	DataRate() int
}

// WatcherSource is satisfied by *session.Watcher.
type WatcherSource interface {
	Stats() session.Stats
}

// ClientSource is satisfied by *transport.WebSocketTransport.
type ClientSource interface {
	Clients() int
	Dropped() uint64
}

// Sources lists what to observe. Nil fields are skipped.
type Sources struct {
	Pipeline  PipelineSource
	Watcher   WatcherSource
	WebSocket ClientSource
}

type counter struct {
	name, desc, unit string
	value            func() uint64
	inst             metric.Int64ObservableCounter
}

type gauge struct {
	name, desc, unit string
	value            func() int64
	inst             metric.Int64ObservableGauge
}

// Register creates the instruments for src on mp. Unregister the returned
// registration to stop observing.
func Register(mp metric.MeterProvider, src Sources) (metric.Registration, error) {
	m := mp.Meter(meterName)

	var counters []*counter
	var gauges []*gauge
	if p := src.Pipeline; p != nil {
		counters = append(counters,
			&counter{name: "nowplaying.capture.buffers", desc: "Capture buffers handed to the spectrum pipeline.", unit: "{buffer}",
				value: func() uint64 { return p.Stats().Buffers }},
			&counter{name: "nowplaying.spectrum.frames", desc: "Spectrum frames emitted.", unit: "{frame}",
				value: func() uint64 { return p.Stats().Frames }},
			&counter{name: "nowplaying.capture.errors", desc: "Capture buffers rejected by the aggregator.", unit: "{buffer}",
				value: func() uint64 { return p.Stats().Errors }},
			&counter{name: "nowplaying.capture.dropped", desc: "Capture buffers skipped while reconfiguring.", unit: "{buffer}",
				value: func() uint64 { return p.Stats().Dropped }},
		)
		gauges = append(gauges,
			&gauge{name: "nowplaying.capture.callback_rate", desc: "Capture callbacks per second.", unit: "{callback}/s",
				value: func() int64 { return int64(p.DataRate()) }},
		)
	}
	if w := src.Watcher; w != nil {
		counters = append(counters,
			&counter{name: "nowplaying.session.signals", desc: "Session notifications accepted.", unit: "{signal}",
				value: func() uint64 { return w.Stats().Signals }},
			&counter{name: "nowplaying.session.refreshes", desc: "Session refreshes run.", unit: "{refresh}",
				value: func() uint64 { return w.Stats().Refreshes }},
			&counter{name: "nowplaying.session.published", desc: "Session snapshots published.", unit: "{event}",
				value: func() uint64 { return w.Stats().Published }},
			&counter{name: "nowplaying.session.stale", desc: "Refresh results dropped after a session swap.", unit: "{refresh}",
				value: func() uint64 { return w.Stats().Stale }},
		)
	}
	if ws := src.WebSocket; ws != nil {
		counters = append(counters,
			&counter{name: "nowplaying.websocket.dropped", desc: "Messages skipped for slow websocket clients.", unit: "{message}",
				value: ws.Dropped},
		)
		gauges = append(gauges,
			&gauge{name: "nowplaying.websocket.clients", desc: "Connected websocket clients.", unit: "{client}",
				value: func() int64 { return int64(ws.Clients()) }},
		)
	}

	var insts []metric.Observable
	var errs []error
	for _, c := range counters {
		inst, err := m.Int64ObservableCounter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.inst = inst
		insts = append(insts, inst)
	}
	for _, g := range gauges {
		inst, err := m.Int64ObservableGauge(g.name, metric.WithDescription(g.desc), metric.WithUnit(g.unit))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.inst = inst
		insts = append(insts, inst)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, c := range counters {
			o.ObserveInt64(c.inst, int64(c.value()))
		}
		for _, g := range gauges {
			o.ObserveInt64(g.inst, g.value())
		}
		return nil
	}, insts...)
}
