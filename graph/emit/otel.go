package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns every event into a short OpenTelemetry span.
//
// The span name is event.Msg. Standard fields become flowchart.run_id,
// flowchart.step and flowchart.node_id; Meta entries become
// flowchart.<key> attributes. An "error" meta entry marks the span as failed.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	emitter := emit.NewOTelEmitter(tp.Tracer("flowchart"))
//	engine, _ := graph.NewEngine(def, host, graph.WithEmitter(emitter))
//
// Spans are started from the context given to NewOTelEmitterWithContext,
// which lets a host parent all spans of an instance under one trace.
type OTelEmitter struct {
	tracer trace.Tracer
	parent context.Context
}

// NewOTelEmitter creates an OTelEmitter whose spans are trace roots.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return NewOTelEmitterWithContext(context.Background(), tracer)
}

// NewOTelEmitterWithContext creates an OTelEmitter whose spans are children
// of the span carried by parent, if any.
func NewOTelEmitterWithContext(parent context.Context, tracer trace.Tracer) *OTelEmitter {
	if parent == nil {
		parent = context.Background()
	}
	return &OTelEmitter{tracer: tracer, parent: parent}
}

// Emit records event as a span that starts and ends immediately.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(o.parent, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("flowchart.run_id", event.RunID),
		attribute.Int("flowchart.step", event.Step),
	)
	if event.NodeID != "" {
		span.SetAttributes(attribute.String("flowchart.node_id", event.NodeID))
	}

	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute("flowchart."+key, value))
	}

	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(fmt.Errorf("%s", msg))
	}
}

func metaAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Duration:
		return attribute.Int64(key, int64(v/time.Millisecond))
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
