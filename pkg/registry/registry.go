// Package registry resolves the named extension points of transitions: condition
// evaluators, validators and post-functions.
package registry

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/issueflow/pkg/models"
)

// TransitionContext is what an extension sees of the transition being attempted.
type TransitionContext struct {
	Issue      *models.IssueWorkflowContext
	Workflow   *models.Workflow
	Transition *models.WorkflowTransition
	From       *models.WorkflowStep
	To         *models.WorkflowStep
	UserID     string
	UserRoles  []string
}

// ConditionEvaluator decides whether a conditional transition is currently available.
type ConditionEvaluator interface {
	ID() string
	Evaluate(ctx context.Context, tc TransitionContext, config models.Properties) (bool, error)
}

// TransitionValidator rejects a transition by returning an error describing why.
type TransitionValidator interface {
	ID() string
	Validate(ctx context.Context, tc TransitionContext, config models.Properties) error
}

// PostFunction runs after a transition has been applied.
type PostFunction interface {
	ID() string
	Run(ctx context.Context, tc TransitionContext, config models.Properties) error
}

type Registry struct {
	logger        *slog.Logger
	mu            sync.RWMutex
	conditions    map[string]ConditionEvaluator
	validators    map[string]TransitionValidator
	postFunctions map[string]PostFunction
}

// NewRegistry returns an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:        log,
		conditions:    make(map[string]ConditionEvaluator),
		validators:    make(map[string]TransitionValidator),
		postFunctions: make(map[string]PostFunction),
	}
}

// NewDefaultRegistry returns a registry holding the built-in extensions.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)
	r.RegisterCondition(SimpleCondition{})

	return r
}

// RegisterCondition adds or replaces a condition evaluator.
func (r *Registry) RegisterCondition(condition ConditionEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	warnReplace(r.logger, "condition", condition.ID(), r.conditions)
	r.conditions[condition.ID()] = condition
}

// RegisterValidator adds or replaces a validator.
func (r *Registry) RegisterValidator(validator TransitionValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	warnReplace(r.logger, "validator", validator.ID(), r.validators)
	r.validators[validator.ID()] = validator
}

// RegisterPostFunction adds or replaces a post-function.
func (r *Registry) RegisterPostFunction(postFunction PostFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	warnReplace(r.logger, "post-function", postFunction.ID(), r.postFunctions)
	r.postFunctions[postFunction.ID()] = postFunction
}

func (r *Registry) Condition(name string) (ConditionEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	condition, ok := r.conditions[name]

	return condition, ok
}

func (r *Registry) Validator(name string) (TransitionValidator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	validator, ok := r.validators[name]

	return validator, ok
}

func (r *Registry) PostFunction(name string) (PostFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	postFunction, ok := r.postFunctions[name]

	return postFunction, ok
}

// Names lists the registered extensions per kind, sorted.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string][]string{
		"conditions":     sortedKeys(r.conditions),
		"validators":     sortedKeys(r.validators),
		"post_functions": sortedKeys(r.postFunctions),
	}
}

func warnReplace[T any](logger *slog.Logger, kind, name string, existing map[string]T) {
	if _, found := existing[name]; found && logger != nil {
		logger.Warn("Replacing registered extension", slog.String("kind", kind), slog.String("name", name))
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}
