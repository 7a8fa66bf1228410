// Package events defines event types and structures for workflow definition and issue transition notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carrying every issueflow event.
const Topic = "issueflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Definition lifecycle events.
	WorkflowCreatedEvent   EventType = "workflow.created"
	WorkflowUpdatedEvent   EventType = "workflow.updated"
	WorkflowDeletedEvent   EventType = "workflow.deleted"
	StepCreatedEvent       EventType = "step.created"
	TransitionCreatedEvent EventType = "transition.created"

	// Issue events.
	IssueTransitionedEvent EventType = "issue.transitioned"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	ProjectID  string         `json:"project_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowCreated struct {
	BaseEvent

	Name      string `json:"name"`
	IssueType string `json:"issue_type,omitempty"`
	IsDefault bool   `json:"is_default"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowUpdated struct {
	BaseEvent

	Name      string `json:"name"`
	IssueType string `json:"issue_type,omitempty"`
	IsDefault bool   `json:"is_default"`
	IsActive  bool   `json:"is_active"`
}

func (w WorkflowUpdated) GetType() EventType {
	return WorkflowUpdatedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

type StepCreated struct {
	BaseEvent

	StepID string `json:"step_id"`
	Status string `json:"status"`
}

func (s StepCreated) GetType() EventType {
	return StepCreatedEvent
}

type TransitionCreated struct {
	BaseEvent

	TransitionID string `json:"transition_id"`
	FromStepID   string `json:"from_step_id"`
	ToStepID     string `json:"to_step_id"`
}

func (t TransitionCreated) GetType() EventType {
	return TransitionCreatedEvent
}

// IssueTransitioned is published once an issue's status has been changed
// through a validated transition.
type IssueTransitioned struct {
	BaseEvent

	IssueID      string `json:"issue_id"`
	TransitionID string `json:"transition_id"`
	FromStatus   string `json:"from_status"`
	ToStatus     string `json:"to_status"`
	UserID       string `json:"user_id,omitempty"`
}

func (i IssueTransitioned) GetType() EventType {
	return IssueTransitionedEvent
}

func NewBaseEvent(eventType EventType, workflowID, projectID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		ProjectID:  projectID,
		Metadata:   make(map[string]any),
	}
}
