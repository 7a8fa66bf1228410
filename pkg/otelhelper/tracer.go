// Package otelhelper wires OpenTelemetry tracing for the transition engine.
package otelhelper

import (
	"context"

	"github.com/dukex/issueflow/pkg/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	WorkflowIDKey   = "issueflow.workflow.id"
	WorkflowNameKey = "issueflow.workflow.name"
	ProjectIDKey    = "issueflow.project.id"
	IssueIDKey      = "issueflow.issue.id"
	IssueTypeKey    = "issueflow.issue.type"
	FromStatusKey   = "issueflow.transition.from"
	ToStatusKey     = "issueflow.transition.to"
	TransitionIDKey = "issueflow.transition.id"
	OutcomeKey      = "issueflow.outcome"
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(ctx context.Context) error

// NewTracer installs a global tracer provider exporting over OTLP/HTTP. The
// exporter reads its endpoint from the standard OTEL_EXPORTER_OTLP_* variables.
// sampleRatio applies to root spans only; child spans follow their parent.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string, sampleRatio float64) (trace.Tracer, Shutdown, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(Sampler(sampleRatio)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Tracer(serviceName), provider.Shutdown, nil
}

// Sampler samples every trace for a ratio of 1 or more (or a non-positive
// ratio, which means unset) and the given fraction of root traces otherwise.
//
// nolint:ireturn
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// WorkflowAttributes describes the workflow a span operates on.
func WorkflowAttributes(workflow *models.Workflow) []attribute.KeyValue {
	if workflow == nil {
		return nil
	}

	return []attribute.KeyValue{
		attribute.String(WorkflowIDKey, workflow.ID),
		attribute.String(WorkflowNameKey, workflow.Name),
		attribute.String(ProjectIDKey, workflow.ProjectID),
	}
}

// TransitionAttributes describes a requested status change of an issue.
func TransitionAttributes(issueID, from, to string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IssueIDKey, issueID),
		attribute.String(FromStatusKey, from),
		attribute.String(ToStatusKey, to),
	}
}
