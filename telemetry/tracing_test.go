package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T, ratio float64) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp, err := newTracerProvider(context.Background(),
		TracingConfig{ServiceName: "ezclip-test", ServiceVersion: "1.3", SampleRatio: ratio},
		sdktrace.WithSpanProcessor(rec))
	if err != nil {
		t.Fatalf("newTracerProvider() error = %v", err)
	}
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "ezclip"})
	if err != nil || shutdown == nil {
		t.Fatalf("InitTracing() shutdown non-nil = %v, err = %v", shutdown != nil, err)
	}
	shutdown()
}

func TestSpanCorrelationAndStatus(t *testing.T) {
	rec := useRecorder(t, 1)

	ctx := WithCorrelation(context.Background(), "corr-1")
	_, span := StartSpan(ctx, SpanClipCreate, attribute.Int("clip.duration", 30))
	EndSpan(span, errors.New("create failed"))
	_, ok := StartSpan(context.Background(), SpanAuthRefresh)
	EndSpan(ok, nil)

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	failed := ended[0]
	if failed.Name() != SpanClipCreate || failed.Status().Code != codes.Error || failed.Status().Description != "create failed" {
		t.Errorf("failed span = %s %+v", failed.Name(), failed.Status())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range failed.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["correlation_id"].AsString() != "corr-1" || attrs["clip.duration"].AsInt64() != 30 {
		t.Errorf("attributes = %v", failed.Attributes())
	}
	if got := ended[1].Status().Code; got != codes.Ok {
		t.Errorf("refresh span status = %v, want Ok", got)
	}
	for _, kv := range ended[1].Attributes() {
		if kv.Key == "correlation_id" {
			t.Error("correlation_id set without a correlation in context")
		}
	}
	if svc, _ := failed.Resource().Set().Value("service.name"); svc.AsString() != "ezclip-test" {
		t.Errorf("service.name = %q", svc.AsString())
	}
}

func TestSampleRatioZeroDropsSpans(t *testing.T) {
	rec := useRecorder(t, 0)
	_, span := StartSpan(context.Background(), SpanClipCreate)
	EndSpan(span, nil)
	if got := len(rec.Ended()); got != 0 {
		t.Errorf("ended spans = %d, want 0 when sampling is off", got)
	}
}
