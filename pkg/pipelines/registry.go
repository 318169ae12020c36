// Package pipelines declares the CI/CD workflows of the nopo monorepo as
// code. Each definition builds a typed workflow.Workflow from the manifest;
// the compile command renders them under .github/workflows. The external
// tools the generated steps invoke (gh, git, docker, terraform, gcloud) are
// collaborators of the generated YAML, not of this package.
package pipelines

import (
	"fmt"

	"github.com/kevin-mind/nopo/pkg/logger"
	"github.com/kevin-mind/nopo/pkg/manifest"
	"github.com/kevin-mind/nopo/pkg/workflow"
)

// Definition is a named workflow generator. Build returns nil (and no
// error) when the manifest disables the workflow.
type Definition struct {
	Name        string // file stem under .github/workflows
	Description string
	Build       func(m *manifest.Manifest) (*workflow.Workflow, error)
}

// Compiled pairs a definition with its built workflow.
type Compiled struct {
	Definition *Definition
	Workflow   *workflow.Workflow
}

// All returns every workflow definition in compile order.
func All() []*Definition {
	return []*Definition{
		CI(),
		Deploy(),
		IssueTriage(),
		PRReview(),
		CIAutofix(),
	}
}

// ByName finds a definition by its file stem.
func ByName(name string) (*Definition, bool) {
	for _, def := range All() {
		if def.Name == name {
			return def, true
		}
	}
	return nil, false
}

// Build runs every definition against the manifest, skipping the ones the
// manifest disables.
func Build(m *manifest.Manifest) ([]*Compiled, error) {
	var compiled []*Compiled
	for _, def := range All() {
		w, err := def.Build(m)
		if err != nil {
			return nil, fmt.Errorf("failed to build workflow %q: %w", def.Name, err)
		}
		if w == nil {
			logger.Debug("workflow disabled by manifest", map[string]any{"workflow": def.Name})
			continue
		}
		compiled = append(compiled, &Compiled{Definition: def, Workflow: w})
	}
	logger.Info("built workflow definitions", map[string]any{"count": len(compiled)})
	return compiled, nil
}

// checkoutStep is the shared first step of jobs that need the repository.
func checkoutStep() *workflow.Step {
	return &workflow.Step{Uses: "actions/checkout@v4"}
}

// ghTokenEnv grants a step the workflow's GITHUB_TOKEN for gh CLI calls.
func ghTokenEnv() map[string]string {
	return map[string]string{"GH_TOKEN": workflow.SecretRef("GITHUB_TOKEN")}
}
