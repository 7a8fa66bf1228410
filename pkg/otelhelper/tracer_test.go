package otelhelper_test

import (
	"testing"

	"github.com/dukex/issueflow/pkg/otelhelper"
	"github.com/dukex/issueflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSampler(t *testing.T) {
	assert.Contains(t, otelhelper.Sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, otelhelper.Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, otelhelper.Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestWorkflowAttributes(t *testing.T) {
	assert.Nil(t, otelhelper.WorkflowAttributes(nil))

	workflow := testutil.CreateTestWorkflow(testutil.WithProject("project-7"))

	assert.ElementsMatch(t, []attribute.KeyValue{
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ProjectIDKey, "project-7"),
	}, otelhelper.WorkflowAttributes(workflow))
}

func TestTransitionAttributes(t *testing.T) {
	attrs := otelhelper.TransitionAttributes("issue-1", "Open", "Closed")

	assert.Equal(t, []attribute.KeyValue{
		attribute.String(otelhelper.IssueIDKey, "issue-1"),
		attribute.String(otelhelper.FromStatusKey, "Open"),
		attribute.String(otelhelper.ToStatusKey, "Closed"),
	}, attrs)
}
