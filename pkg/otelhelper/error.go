package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on the span and marks the span as failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// SetRejected marks a span whose operation completed with a domain rejection.
// The span status stays unset; the outcome is an attribute.
func SetRejected(span trace.Span, outcome string, message string) {
	span.SetAttributes(attribute.String(OutcomeKey, outcome))
	span.AddEvent("rejected", trace.WithAttributes(attribute.String("message", message)))
}
