package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rhysd/actionlint"
	"github.com/spf13/cobra"

	"github.com/kevin-mind/nopo/pkg/console"
	"github.com/kevin-mind/nopo/pkg/logger"
	"github.com/kevin-mind/nopo/pkg/manifest"
	"github.com/kevin-mind/nopo/pkg/pipelines"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest and compiled workflows",
		Long: `Validate the manifest against its schema, build every workflow, lint the
generated YAML with actionlint, and report files on disk that have drifted
from their definitions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, outputDir, err := resolvePaths(cmd)
			if err != nil {
				return err
			}
			strict, _ := cmd.Flags().GetBool("strict")
			return RunValidate(manifestPath, outputDir, strict)
		},
	}

	cmd.Flags().Bool("strict", false, "treat warnings and drift as failures")

	return cmd
}

// RunValidate checks the manifest, lints every generated workflow, and
// detects drift between definitions and files on disk.
func RunValidate(manifestPath, outputDir string, strict bool) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(
		fmt.Sprintf("Manifest %s is valid (%d apps)", console.ToRelativePath(manifestPath), len(m.Apps))))

	compiled, err := pipelines.Build(m)
	if err != nil {
		return err
	}

	var lintFindings int
	var staleFiles []string

	for _, c := range compiled {
		name := c.Definition.Name
		data, err := c.Workflow.YAML()
		if err != nil {
			return err
		}

		path := workflowFilePath(outputDir, name)
		findings, err := lintWorkflow(path, data)
		if err != nil {
			return err
		}
		for _, e := range findings {
			fmt.Fprintln(os.Stderr, console.FormatError(actionlintToCompilerError(e, data)))
		}
		lintFindings += len(findings)

		existing, err := os.ReadFile(path)
		switch {
		case err != nil:
			staleFiles = append(staleFiles, fmt.Sprintf("%s (missing)", console.ToRelativePath(path)))
		case !bytes.Equal(existing, data):
			staleFiles = append(staleFiles, fmt.Sprintf("%s (out of date)", console.ToRelativePath(path)))
		}
	}

	if lintFindings == 0 {
		fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(
			fmt.Sprintf("%d workflow(s) passed actionlint", len(compiled))))
	}

	for _, f := range staleFiles {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("%s, run 'nopo-ci compile'", f)))
	}

	logger.Debug("validation finished", map[string]any{
		"workflows":     len(compiled),
		"lint_findings": lintFindings,
		"stale_files":   len(staleFiles),
	})

	if strict {
		if lintFindings > 0 {
			return fmt.Errorf("actionlint reported %d finding(s)", lintFindings)
		}
		if len(staleFiles) > 0 {
			return fmt.Errorf("%d workflow file(s) out of date", len(staleFiles))
		}
	} else if lintFindings > 0 {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("%d actionlint finding(s), rerun with --strict to fail on them", lintFindings)))
	}
	return nil
}

// lintWorkflow runs actionlint in process against the rendered YAML. The
// path is only used for labelling findings, the file need not exist.
func lintWorkflow(path string, content []byte) ([]*actionlint.Error, error) {
	linter, err := actionlint.NewLinter(io.Discard, &actionlint.LinterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create linter: %w", err)
	}
	findings, err := linter.Lint(path, content, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to lint %s: %w", path, err)
	}
	return findings, nil
}

// actionlintToCompilerError adapts an actionlint finding to the console
// diagnostic shape, attaching the offending lines as context.
func actionlintToCompilerError(e *actionlint.Error, source []byte) console.CompilerError {
	ce := console.CompilerError{
		Position: console.ErrorPosition{File: e.Filepath, Line: e.Line, Column: e.Column},
		Type:     "error",
		Message:  e.Message,
	}
	if e.Kind != "" {
		ce.Message = fmt.Sprintf("%s [%s]", e.Message, e.Kind)
	}
	if snippet := strings.TrimRight(e.GetTemplateFields(source).Snippet, "\n"); snippet != "" {
		ce.Context = strings.Split(snippet, "\n")
	}
	return ce
}
