package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*OTelEmitter, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelEmitter(tp.Tracer("test")), exporter
}

func attributeMap(attrs []attribute.KeyValue) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestOTelEmitter_Emit(t *testing.T) {
	emitter, exporter := newTestTracer(t)

	emitter.Emit(Event{
		RunID:  "run-001",
		Step:   3,
		NodeID: "join",
		Msg:    "merge_joined",
		Meta:   map[string]interface{}{"policy": "first", "index": 4, "ready": true},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "merge_joined" {
		t.Errorf("span name = %q, want %q", span.Name, "merge_joined")
	}

	attrs := attributeMap(span.Attributes)
	checks := map[string]interface{}{
		"flowchart.run_id":  "run-001",
		"flowchart.step":    int64(3),
		"flowchart.node_id": "join",
		"flowchart.policy":  "first",
		"flowchart.index":   int64(4),
		"flowchart.ready":   true,
	}
	for k, want := range checks {
		if got := attrs[k]; got != want {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
	if span.Status.Code == codes.Error {
		t.Error("span without error meta should not fail")
	}
}

func TestOTelEmitter_ErrorStatus(t *testing.T) {
	emitter, exporter := newTestTracer(t)

	emitter.Emit(Event{RunID: "run-001", NodeID: "charge", Msg: "node_faulted", Meta: map[string]interface{}{"error": "card declined"}})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	if spans[0].Status.Description != "card declined" {
		t.Errorf("expected description %q, got %q", "card declined", spans[0].Status.Description)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestOTelEmitter_InstanceEventHasNoNodeAttribute(t *testing.T) {
	emitter, exporter := newTestTracer(t)

	emitter.Emit(Event{RunID: "run-001", Msg: "flowchart_activated"})

	attrs := attributeMap(exporter.GetSpans()[0].Attributes)
	if _, ok := attrs["flowchart.node_id"]; ok {
		t.Error("instance-level span should not carry a node id")
	}
}
