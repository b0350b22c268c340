package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNoop(t *testing.T) {
	tel := Noop()
	if tel == nil || tel.Tracer == nil || tel.Chats == nil {
		t.Fatalf("noop telemetry incomplete: %+v", tel)
	}
	tel.Chats.Add(context.Background(), 1)
}

func TestCountersRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tel, err := New(mp.Meter("test"), tracenoop.NewTracerProvider().Tracer("test"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	tel.Registrations.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "webassist.registrations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
				t.Fatalf("unexpected data: %+v", m.Data)
			}
			return
		}
	}
	t.Fatalf("registrations counter not collected")
}

func TestInit(t *testing.T) {
	tel, cleanup, err := Init(context.Background(), t.TempDir(), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	_, span := tel.Tracer.Start(context.Background(), "op")
	span.End()
}
