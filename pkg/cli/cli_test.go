//go:build !integration

package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rhysd/actionlint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin-mind/nopo/pkg/console"
	"github.com/kevin-mind/nopo/pkg/manifest"
)

const testManifestYAML = `
version: 1
name: nopo
apps:
  - name: backend
    path: apps/backend
    kind: service
    dockerfile: apps/backend/Dockerfile
    test: make -C apps/backend test
    deploy:
      environment: production
      service: nopo-backend
  - name: trading
    path: apps/trading
    kind: service
    dockerfile: apps/trading/Dockerfile
    test: make -C apps/trading test
bots:
  issue_triage:
    enabled: true
  pr_review:
    enabled: true
  ci_autofix:
    enabled: true
`

// writeTestRepo lays out a minimal checkout with a manifest and returns the
// manifest path and output directory.
func writeTestRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	manifestPath := filepath.Join(dir, manifest.DefaultPath)
	require.NoError(t, os.WriteFile(manifestPath, []byte(testManifestYAML), 0644))

	outputDir := filepath.Join(dir, ".github", "workflows")
	require.NoError(t, os.MkdirAll(outputDir, 0755))

	return manifestPath, outputDir
}

func TestRunCompileWritesAllWorkflows(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	err := RunCompile(CompileOptions{ManifestPath: manifestPath, OutputDir: outputDir})
	require.NoError(t, err)

	for _, name := range []string{"ci", "deploy", "issue-triage", "pr-review", "ci-autofix"} {
		path := workflowFilePath(outputDir, name)
		data, err := os.ReadFile(path)
		require.NoError(t, err, "expected %s to be written", path)
		assert.Contains(t, string(data), "DO NOT EDIT")
		assert.Contains(t, string(data), "jobs:")
	}
}

func TestRunCompileIsIdempotent(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)
	opts := CompileOptions{ManifestPath: manifestPath, OutputDir: outputDir}

	require.NoError(t, RunCompile(opts))

	ciPath := workflowFilePath(outputDir, "ci")
	first, err := os.ReadFile(ciPath)
	require.NoError(t, err)
	info, err := os.Stat(ciPath)
	require.NoError(t, err)

	// A second run must not rewrite unchanged files.
	require.NoError(t, RunCompile(opts))

	second, err := os.ReadFile(ciPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	after, err := os.Stat(ciPath)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime(), "unchanged file should not be rewritten")
}

func TestRunCompileSelectsRequestedWorkflows(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	err := RunCompile(CompileOptions{
		ManifestPath: manifestPath,
		OutputDir:    outputDir,
		Workflows:    []string{"ci"},
	})
	require.NoError(t, err)

	_, err = os.Stat(workflowFilePath(outputDir, "ci"))
	assert.NoError(t, err)
	_, err = os.Stat(workflowFilePath(outputDir, "deploy"))
	assert.True(t, os.IsNotExist(err), "deploy should not be compiled")
}

func TestRunCompileRejectsUnknownWorkflow(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	err := RunCompile(CompileOptions{
		ManifestPath: manifestPath,
		OutputDir:    outputDir,
		Workflows:    []string{"nope"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRunCompileDryRunWritesNothing(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	err := RunCompile(CompileOptions{
		ManifestPath: manifestPath,
		OutputDir:    outputDir,
		DryRun:       true,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// captureStdout redirects os.Stdout around fn and returns what it printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	prev := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = prev }()

	fn()

	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestRunCompileDryRunOutputIsDeterministic(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)
	opts := CompileOptions{ManifestPath: manifestPath, OutputDir: outputDir, DryRun: true}

	first := captureStdout(t, func() { require.NoError(t, RunCompile(opts)) })
	second := captureStdout(t, func() { require.NoError(t, RunCompile(opts)) })
	assert.Equal(t, first, second)

	// Documents print in workflow name order regardless of which pool
	// goroutine rendered them.
	var headers []string
	for _, line := range strings.Split(first, "\n") {
		if strings.HasPrefix(line, "--- ") {
			headers = append(headers, strings.TrimPrefix(line, "--- "))
		}
	}
	want := []string{
		workflowFilePath(outputDir, "ci"),
		workflowFilePath(outputDir, "ci-autofix"),
		workflowFilePath(outputDir, "deploy"),
		workflowFilePath(outputDir, "issue-triage"),
		workflowFilePath(outputDir, "pr-review"),
	}
	assert.Equal(t, want, headers)
}

func TestRunCompileWatchRecompilesOnManifestChange(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- RunCompileWatch(ctx, CompileOptions{ManifestPath: manifestPath, OutputDir: outputDir})
	}()

	ciPath := workflowFilePath(outputDir, "ci")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(ciPath)
		return err == nil && strings.Contains(string(data), "test-trading")
	}, 10*time.Second, 50*time.Millisecond, "initial compile did not finish")

	// Drop trading's test command; the watcher should recompile ci.yml
	// without it. Rewriting inside the poll closes the window between the
	// initial compile and the watch registration.
	without := strings.Replace(testManifestYAML, "    test: make -C apps/trading test\n", "", 1)
	require.Eventually(t, func() bool {
		if err := os.WriteFile(manifestPath, []byte(without), 0644); err != nil {
			return false
		}
		data, err := os.ReadFile(ciPath)
		return err == nil && !strings.Contains(string(data), "test-trading")
	}, 10*time.Second, 100*time.Millisecond, "watcher did not recompile after manifest change")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop after cancellation")
	}
}

func TestRunValidateDriftDetection(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	// Nothing compiled yet: missing files are a warning, strict fails.
	require.NoError(t, RunValidate(manifestPath, outputDir, false))
	err := RunValidate(manifestPath, outputDir, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")

	require.NoError(t, RunCompile(CompileOptions{ManifestPath: manifestPath, OutputDir: outputDir}))
	require.NoError(t, RunValidate(manifestPath, outputDir, true))

	// Hand-editing a compiled file reintroduces drift. Only the drift check
	// sees it: lint runs over the rendered YAML, not the file on disk.
	ciPath := workflowFilePath(outputDir, "ci")
	require.NoError(t, os.WriteFile(ciPath, []byte("tampered\n"), 0644))

	require.NoError(t, RunValidate(manifestPath, outputDir, false))
	err = RunValidate(manifestPath, outputDir, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")
}

func TestRootCommandHonorsNoColorEnv(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)
	t.Setenv("NOPO_NO_COLOR", "true")

	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"list", "--manifest", manifestPath, "--output", outputDir})
	cmd.SetOut(new(strings.Builder))
	cmd.SetErr(new(strings.Builder))
	require.NoError(t, cmd.Execute())

	assert.True(t, color.NoColor)
}

func TestCollectListItemsTracksCompileState(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	m, err := manifest.Load(manifestPath)
	require.NoError(t, err)

	// Nothing compiled yet.
	items, err := collectListItems(m, outputDir)
	require.NoError(t, err)
	require.Len(t, items, 5)
	for _, item := range items {
		assert.Equal(t, "missing", item.Compiled, item.Workflow)
	}

	require.NoError(t, RunCompile(CompileOptions{ManifestPath: manifestPath, OutputDir: outputDir}))

	items, err = collectListItems(m, outputDir)
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, "up to date", item.Compiled, item.Workflow)
		assert.Greater(t, item.Jobs, 0, item.Workflow)
	}

	// Hand-editing a generated file makes it stale.
	ciPath := workflowFilePath(outputDir, "ci")
	require.NoError(t, os.WriteFile(ciPath, []byte("tampered\n"), 0644))

	items, err = collectListItems(m, outputDir)
	require.NoError(t, err)
	for _, item := range items {
		if item.Workflow == "ci" {
			assert.Equal(t, "stale", item.Compiled)
		} else {
			assert.Equal(t, "up to date", item.Compiled, item.Workflow)
		}
	}
}

func TestCollectListItemsMarksDisabledBots(t *testing.T) {
	m, err := manifest.Parse([]byte(`
version: 1
name: nopo
apps:
  - name: backend
    path: apps/backend
    kind: service
    test: make test
`))
	require.NoError(t, err)

	items, err := collectListItems(m, t.TempDir())
	require.NoError(t, err)

	byName := map[string]WorkflowListItem{}
	for _, item := range items {
		byName[item.Workflow] = item
	}
	assert.Equal(t, "disabled", byName["issue-triage"].Compiled)
	assert.Equal(t, "disabled", byName["pr-review"].Compiled)
	assert.Equal(t, "disabled", byName["ci-autofix"].Compiled)
	assert.Equal(t, "missing", byName["ci"].Compiled)
}

func TestLintWorkflowAcceptsValidYAML(t *testing.T) {
	content := []byte(`name: Smoke
on:
  push:
    branches:
      - main
jobs:
  smoke:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
`)
	findings, err := lintWorkflow("smoke.yml", content)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestLintWorkflowFlagsBrokenExpression(t *testing.T) {
	content := []byte(`name: Broken
on:
  push:
    branches:
      - main
jobs:
  broken:
    runs-on: ubuntu-latest
    steps:
      - run: echo ok
        if: ${{ github.event. }}
`)
	findings, err := lintWorkflow("broken.yml", content)
	require.NoError(t, err)
	assert.NotEmpty(t, findings)
}

func TestActionlintToCompilerError(t *testing.T) {
	e := &actionlint.Error{
		Message:  "property \"foo\" is not defined",
		Filepath: "ci.yml",
		Line:     4,
		Column:   9,
		Kind:     "expression",
	}

	ce := actionlintToCompilerError(e, nil)
	assert.Equal(t, "ci.yml", ce.Position.File)
	assert.Equal(t, 4, ce.Position.Line)
	assert.Equal(t, 9, ce.Position.Column)
	assert.Equal(t, "error", ce.Type)
	assert.Contains(t, ce.Message, "[expression]")

	out := console.FormatError(ce)
	assert.Contains(t, out, "ci.yml:4:9:")
}

func TestResolvePathsRequiresExplicitFlagsOutsideRepo(t *testing.T) {
	manifestPath, outputDir := writeTestRepo(t)

	cmd := NewRootCommand("test")
	require.NoError(t, cmd.ParseFlags([]string{"--manifest", manifestPath, "--output", outputDir}))

	gotManifest, gotOutput, err := resolvePaths(cmd)
	require.NoError(t, err)
	assert.Equal(t, manifestPath, gotManifest)
	assert.Equal(t, outputDir, gotOutput)
}

func TestRootCommandRejectsBadLogLevel(t *testing.T) {
	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"--log-level", "loud", "list"})
	cmd.SetOut(new(strings.Builder))
	cmd.SetErr(new(strings.Builder))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}
