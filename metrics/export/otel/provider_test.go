package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	otelapi "go.opentelemetry.io/otel"
)

func TestNewMeterProviderRequiresEndpoint(t *testing.T) {
	if _, err := NewMeterProvider(context.Background(), MeterConfig{ServiceName: "user-api-svc"}); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
}

func TestMeterProviderPushesEngineMetrics(t *testing.T) {
	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/metrics" {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prev := otelapi.GetMeterProvider()
	t.Cleanup(func() { otelapi.SetMeterProvider(prev) })

	ctx := context.Background()
	provider, err := NewMeterProvider(ctx, MeterConfig{
		ServiceName: "user-api-svc",
		Endpoint:    strings.TrimPrefix(srv.URL, "http://"),
		Insecure:    true,
		Interval:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewMeterProvider failed: %v", err)
	}
	if otelapi.GetMeterProvider() != provider {
		t.Fatal("expected provider installed globally")
	}

	m := usersvc.NewMetrics(usersvc.MetricsConfig{Enabled: true})
	m.Inc(usersvc.MetricLoginSuccess)
	exp, err := NewOTelExporter(otelapi.Meter("user-api-svc"), metricsFunc(m.Snapshot))
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if pushes.Load() == 0 {
		t.Fatal("expected metrics pushed to the collector on shutdown")
	}
}
