package usersvc

import (
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	for _, bc := range []struct {
		name string
		cfg  MetricsConfig
	}{
		{name: "enabled", cfg: MetricsConfig{Enabled: true}},
		{name: "disabled", cfg: MetricsConfig{}},
	} {
		b.Run(bc.name, func(b *testing.B) {
			m := NewMetrics(bc.cfg)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				m.Inc(MetricLoginSuccess)
			}
		})
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricResolveSuccess)
		}
	})
}

// Login and resolve paths touch these counters together.
var hotMetricIDs = [...]MetricID{
	MetricLoginSuccess,
	MetricLoginFailure,
	MetricLoginLocked,
	MetricResolveSuccess,
	MetricResolveFailure,
	MetricRefreshSuccess,
	MetricTokenRevoked,
	MetricLogout,
}

func BenchmarkMetricsIncMixedParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(hotMetricIDs[idx%len(hotMetricIDs)])
			idx++
		}
	})
}

func BenchmarkMetricsObserveParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	samples := [...]time.Duration{
		time.Millisecond,
		12 * time.Millisecond,
		180 * time.Millisecond,
		2 * time.Second,
	}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Observe(MetricResolveLatency, samples[idx%len(samples)])
			idx++
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for id := MetricID(0); id < firstLatencyMetric; id++ {
		m.Inc(id)
	}
	m.Observe(MetricLoginLatency, 200*time.Millisecond)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}
