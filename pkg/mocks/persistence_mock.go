package mocks

import (
	"context"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByProject(ctx context.Context, projectID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockWorkflowRepository) SaveStep(ctx context.Context, step *models.WorkflowStep) error {
	args := m.Called(ctx, step)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowStep), args.Error(1)
}

func (m *MockWorkflowRepository) SaveTransition(ctx context.Context, transition *models.WorkflowTransition) error {
	args := m.Called(ctx, transition)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetTransitions(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowTransition), args.Error(1)
}

func (m *MockWorkflowRepository) GetDefinition(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

// MockIssueRepository is a mock implementation of persistence.IssueRepository.
type MockIssueRepository struct {
	mock.Mock
}

func (m *MockIssueRepository) Save(ctx context.Context, issue *models.Issue) error {
	args := m.Called(ctx, issue)

	return args.Error(0)
}

func (m *MockIssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Issue), args.Error(1)
}

func (m *MockIssueRepository) WorkflowContext(ctx context.Context, issueID string) (*models.IssueWorkflowContext, error) {
	args := m.Called(ctx, issueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.IssueWorkflowContext), args.Error(1)
}

func (m *MockIssueRepository) IssueTypeCounts(ctx context.Context, projectID string) (map[string]int, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockIssueRepository) CompareAndSwapStatus(ctx context.Context, issueID, expected, next string) error {
	args := m.Called(ctx, issueID, expected, next)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock

	workflowRepo *MockWorkflowRepository
	issueRepo    *MockIssueRepository
}

// NewMockPersistence creates a new mock persistence with mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo: &MockWorkflowRepository{},
		issueRepo:    &MockIssueRepository{},
	}
}

func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) GetMockIssueRepository() *MockIssueRepository {
	return m.issueRepo
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) IssueRepository() persistence.IssueRepository {
	return m.issueRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
