package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
)

type fakeSource struct {
	snapshot usersvc.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() usersvc.MetricsSnapshot { return f.snapshot }

func counters(values map[usersvc.MetricID]uint64) usersvc.MetricsSnapshot {
	return usersvc.MetricsSnapshot{
		Counters:   values,
		Histograms: map[usersvc.MetricID]usersvc.HistogramSnapshot{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporter(fakeSource{snapshot: counters(map[usersvc.MetricID]uint64{})})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exp *PrometheusExporter
	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestRenderCounters(t *testing.T) {
	exp := NewPrometheusExporter(fakeSource{snapshot: counters(map[usersvc.MetricID]uint64{
		usersvc.MetricLoginSuccess:     7,
		usersvc.MetricLockoutTriggered: 2,
	})})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE usersvc_login_success_total counter\n",
		"usersvc_login_success_total 7\n",
		"usersvc_lockout_triggered_total 2\n",
		"usersvc_login_failure_total 0\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "_latency_seconds") {
		t.Fatalf("expected no histogram when latency is disabled, got:\n%s", out)
	}
}

func TestRenderHistogram(t *testing.T) {
	snap := counters(map[usersvc.MetricID]uint64{usersvc.MetricResolveSuccess: 36})
	snap.Histograms[usersvc.MetricResolveLatency] = usersvc.HistogramSnapshot{
		Buckets: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 0},
		Count:   36,
		Sum:     1500 * time.Millisecond,
	}
	exp := NewPrometheusExporter(fakeSource{snapshot: snap})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE usersvc_resolve_latency_seconds histogram\n",
		`usersvc_resolve_latency_seconds_bucket{le="0.005"} 1` + "\n",
		`usersvc_resolve_latency_seconds_bucket{le="0.01"} 3` + "\n",
		`usersvc_resolve_latency_seconds_bucket{le="1"} 36` + "\n",
		`usersvc_resolve_latency_seconds_bucket{le="+Inf"} 36` + "\n",
		"usersvc_resolve_latency_seconds_sum 1.5\n",
		"usersvc_resolve_latency_seconds_count 36\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "usersvc_login_latency_seconds") {
		t.Fatalf("expected only histograms present in the snapshot, got:\n%s", out)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("unexpected escape %q", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporter(fakeSource{snapshot: counters(map[usersvc.MetricID]uint64{usersvc.MetricLoginSuccess: 1})})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "usersvc_login_success_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	snap := counters(map[usersvc.MetricID]uint64{
		usersvc.MetricLoginSuccess:   1000,
		usersvc.MetricLoginFailure:   40,
		usersvc.MetricRefreshSuccess: 800,
		usersvc.MetricResolveSuccess: 5000,
	})
	for _, id := range []usersvc.MetricID{usersvc.MetricLoginLatency, usersvc.MetricResolveLatency} {
		snap.Histograms[id] = usersvc.HistogramSnapshot{
			Buckets: []uint64{10, 20, 30, 40, 50, 60, 70, 80, 90},
			Count:   450,
			Sum:     3 * time.Second,
		}
	}
	exp := NewPrometheusExporter(fakeSource{snapshot: snap})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
