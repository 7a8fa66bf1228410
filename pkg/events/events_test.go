package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(WorkflowCreatedEvent, "wf-1", "project-1")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, WorkflowCreatedEvent, base.Type)
	assert.Equal(t, "wf-1", base.WorkflowID)
	assert.Equal(t, "project-1", base.ProjectID)
	assert.False(t, base.Timestamp.IsZero())
	assert.NotNil(t, base.Metadata)
}

func TestEvents_GetType(t *testing.T) {
	tests := []struct {
		event interface{ GetType() EventType }
		want  EventType
	}{
		{WorkflowCreated{}, WorkflowCreatedEvent},
		{WorkflowUpdated{}, WorkflowUpdatedEvent},
		{WorkflowDeleted{}, WorkflowDeletedEvent},
		{StepCreated{}, StepCreatedEvent},
		{TransitionCreated{}, TransitionCreatedEvent},
		{IssueTransitioned{}, IssueTransitionedEvent},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.GetType())
		})
	}
}

func TestIssueTransitioned_JSON(t *testing.T) {
	event := IssueTransitioned{
		BaseEvent:    NewBaseEvent(IssueTransitionedEvent, "wf-1", "project-1"),
		IssueID:      "issue-1",
		TransitionID: "tr-1",
		FromStatus:   "Open",
		ToStatus:     "InProgress",
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"from_status":"Open"`)
	assert.Contains(t, string(payload), `"type":"issue.transitioned"`)
	assert.NotContains(t, string(payload), `"user_id"`)
}
