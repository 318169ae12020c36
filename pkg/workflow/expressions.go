package workflow

import "fmt"

// Expression helpers for the ${{ }} interpolation syntax. Keeping these in
// one place avoids hand-typed braces scattered through pipeline definitions.

// Expr wraps a raw expression in interpolation delimiters.
func Expr(expr string) string {
	return "${{ " + expr + " }}"
}

// SecretRef references a repository or environment secret.
func SecretRef(name string) string {
	return Expr("secrets." + name)
}

// GitHubRef references a field of the github context, e.g.
// GitHubRef("event.issue.number").
func GitHubRef(path string) string {
	return Expr("github." + path)
}

// MatrixRef references a matrix dimension value.
func MatrixRef(key string) string {
	return Expr("matrix." + key)
}

// NeedsOutput references an output of an upstream job.
func NeedsOutput(jobID, output string) string {
	return Expr(fmt.Sprintf("needs.%s.outputs.%s", jobID, output))
}

// StepOutput references an output of an earlier step in the same job.
func StepOutput(stepID, output string) string {
	return Expr(fmt.Sprintf("steps.%s.outputs.%s", stepID, output))
}
