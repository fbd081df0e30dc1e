// SPDX-License-Identifier: MIT
package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"nowplaying/internal/audio"
	"nowplaying/internal/session"
)

type fakePipeline struct {
	stats audio.Stats
	rate  int
}

func (f *fakePipeline) Stats() audio.Stats { return f.stats }
func (f *fakePipeline) DataRate() int      { return f.rate }

type fakeWatcher struct{ stats session.Stats }

func (f *fakeWatcher) Stats() session.Stats { return f.stats }

type fakeClients struct {
	clients int
	dropped uint64
}

func (f *fakeClients) Clients() int    { return f.clients }
func (f *fakeClients) Dropped() uint64 { return f.dropped }

func newTestReader(t *testing.T, src Sources) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	if _, err := Register(mp, src); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reader
}

// collect gathers every data point into name -> value.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if !data.IsMonotonic {
					t.Errorf("%s should be monotonic", m.Name)
				}
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			default:
				t.Errorf("%s has unexpected data %T", m.Name, m.Data)
			}
		}
	}
	return out
}

func TestRegisterObservesSources(t *testing.T) {
	p := &fakePipeline{stats: audio.Stats{Buffers: 10, Frames: 4, Errors: 1, Dropped: 2}, rate: 94}
	w := &fakeWatcher{stats: session.Stats{Signals: 12, Refreshes: 3, Published: 2, Stale: 1}}
	ws := &fakeClients{clients: 2, dropped: 7}
	reader := newTestReader(t, Sources{Pipeline: p, Watcher: w, WebSocket: ws})

	got := collect(t, reader)
	want := map[string]int64{
		"nowplaying.capture.buffers":       10,
		"nowplaying.spectrum.frames":       4,
		"nowplaying.capture.errors":        1,
		"nowplaying.capture.dropped":       2,
		"nowplaying.capture.callback_rate": 94,
		"nowplaying.session.signals":       12,
		"nowplaying.session.refreshes":     3,
		"nowplaying.session.published":     2,
		"nowplaying.session.stale":         1,
		"nowplaying.websocket.dropped":     7,
		"nowplaying.websocket.clients":     2,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
	if len(got) != len(want) {
		t.Errorf("collected %d metrics, want %d", len(got), len(want))
	}

	// Values are read at collection time.
	p.stats.Frames = 9
	ws.clients = 0
	got = collect(t, reader)
	if got["nowplaying.spectrum.frames"] != 9 || got["nowplaying.websocket.clients"] != 0 {
		t.Errorf("second collection = %v", got)
	}
}

func TestRegisterSkipsNilSources(t *testing.T) {
	reader := newTestReader(t, Sources{Watcher: &fakeWatcher{}})
	got := collect(t, reader)
	if len(got) != 4 {
		t.Errorf("collected %v, want only the four session counters", got)
	}
	if _, ok := got["nowplaying.spectrum.frames"]; ok {
		t.Error("pipeline metrics registered without a pipeline")
	}
}

func TestProviderServesPrometheus(t *testing.T) {
	p, err := InitProvider(ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if _, err := Register(p, Sources{Watcher: &fakeWatcher{stats: session.Stats{Published: 5}}}); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "nowplaying_session_published") {
		t.Errorf("metrics output lacks the session counter:\n%s", body)
	}
}
