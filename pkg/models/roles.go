package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeRole folds a role name so that comparisons ignore case.
func NormalizeRole(role string) string {
	return cases.Fold().String(strings.TrimSpace(role))
}

// RoleSet is a set of normalized role names.
type RoleSet map[string]struct{}

// NewRoleSet normalizes the given roles into a set. Blank names are dropped.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))

	for _, role := range roles {
		normalized := NormalizeRole(role)
		if normalized == "" {
			continue
		}

		set[normalized] = struct{}{}
	}

	return set
}

// Contains reports whether role, in any casing, is in the set.
func (s RoleSet) Contains(role string) bool {
	_, ok := s[NormalizeRole(role)]

	return ok
}

// ContainsAny reports whether at least one of roles is in the set.
func (s RoleSet) ContainsAny(roles []string) bool {
	for _, role := range roles {
		if s.Contains(role) {
			return true
		}
	}

	return false
}

// DedupeRoles removes blank and case-insensitively repeated roles, keeping
// the first spelling of each.
func DedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}

	seen := make(RoleSet, len(roles))
	result := make([]string, 0, len(roles))

	for _, role := range roles {
		trimmed := strings.TrimSpace(role)
		if trimmed == "" || seen.Contains(trimmed) {
			continue
		}

		seen[NormalizeRole(trimmed)] = struct{}{}
		result = append(result, trimmed)
	}

	return result
}
