// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/issueflow/pkg/registry"
)

// NewRegistry returns the extension registry with the built-in evaluators.
// Deployments embedding the engine register their own extensions on it.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewDefaultRegistry(log)

	log.Debug("Extension registry ready", "extensions", reg.Names())

	return reg
}
