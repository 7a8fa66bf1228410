package models_test

import (
	"testing"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRoleSet_CaseInsensitive(t *testing.T) {
	tests := []struct {
		name     string
		have     []string
		required []string
		want     bool
	}{
		{name: "same casing", have: []string{"Developer"}, required: []string{"Developer"}, want: true},
		{name: "lower case requester", have: []string{"developer"}, required: []string{"Developer"}, want: true},
		{name: "upper case requirement", have: []string{"admin"}, required: []string{"ADMIN"}, want: true},
		{name: "surrounding spaces", have: []string{" Tester "}, required: []string{"tester"}, want: true},
		{name: "no intersection", have: []string{"Developer"}, required: []string{"Admin"}, want: false},
		{name: "empty requester", have: nil, required: []string{"Admin"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := models.NewRoleSet(tt.have...)
			assert.Equal(t, tt.want, set.ContainsAny(tt.required))
		})
	}
}

func TestWorkflowTransition_PermitsAny(t *testing.T) {
	unrestricted := &models.WorkflowTransition{}
	assert.True(t, unrestricted.Unrestricted())
	assert.True(t, unrestricted.PermitsAny(models.NewRoleSet()))

	restricted := &models.WorkflowTransition{RequiredRoles: []string{"Developer", "Tester"}}
	assert.True(t, restricted.PermitsAny(models.NewRoleSet("tester")))
	assert.False(t, restricted.PermitsAny(models.NewRoleSet("Admin")))
}

func TestDedupeRoles(t *testing.T) {
	assert.Nil(t, models.DedupeRoles(nil))
	assert.Equal(t,
		[]string{"Developer", "Admin"},
		models.DedupeRoles([]string{"Developer", " developer", "", "Admin", "ADMIN"}),
	)
}

func TestNewRoleSet_DropsBlank(t *testing.T) {
	set := models.NewRoleSet("", "  ", "Admin")
	assert.Len(t, set, 1)
	assert.True(t, set.Contains("admin"))
}
