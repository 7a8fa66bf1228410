package registry

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dukex/issueflow/pkg/models"
)

// SimpleCondition is satisfied when config["expression"] is truthy. A missing
// or empty expression is satisfied.
type SimpleCondition struct{}

func (SimpleCondition) ID() string {
	return "simple"
}

func (SimpleCondition) Evaluate(_ context.Context, _ TransitionContext, config models.Properties) (bool, error) {
	return truthy(config["expression"])
}

func truthy(exp any) (bool, error) {
	if exp == nil {
		return true, nil
	}

	switch v := exp.(type) {
	case bool:
		return v, nil
	case string:
		if v == "" {
			return true, nil
		}

		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", exp)
	}
}

type conditionFunc struct {
	id string
	fn func(context.Context, TransitionContext, models.Properties) (bool, error)
}

func (c conditionFunc) ID() string { return c.id }

func (c conditionFunc) Evaluate(ctx context.Context, tc TransitionContext, config models.Properties) (bool, error) {
	return c.fn(ctx, tc, config)
}

// NewConditionFunc wraps fn as a named condition evaluator.
func NewConditionFunc(id string, fn func(context.Context, TransitionContext, models.Properties) (bool, error)) ConditionEvaluator {
	return conditionFunc{id: id, fn: fn}
}

type validatorFunc struct {
	id string
	fn func(context.Context, TransitionContext, models.Properties) error
}

func (v validatorFunc) ID() string { return v.id }

func (v validatorFunc) Validate(ctx context.Context, tc TransitionContext, config models.Properties) error {
	return v.fn(ctx, tc, config)
}

// NewValidatorFunc wraps fn as a named validator.
func NewValidatorFunc(id string, fn func(context.Context, TransitionContext, models.Properties) error) TransitionValidator {
	return validatorFunc{id: id, fn: fn}
}

type postFunc struct {
	id string
	fn func(context.Context, TransitionContext, models.Properties) error
}

func (p postFunc) ID() string { return p.id }

func (p postFunc) Run(ctx context.Context, tc TransitionContext, config models.Properties) error {
	return p.fn(ctx, tc, config)
}

// NewPostFunc wraps fn as a named post-function.
func NewPostFunc(id string, fn func(context.Context, TransitionContext, models.Properties) error) PostFunction {
	return postFunc{id: id, fn: fn}
}
