//go:build !integration

package workflow

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow() *Workflow {
	return &Workflow{
		Name: "CI",
		On: Triggers{
			Push:        &PushFilter{Branches: []string{"main"}, Paths: []string{"apps/backend/**"}},
			PullRequest: &PullRequestFilter{Branches: []string{"main"}},
		},
		Permissions: ContentsReadPermissions(),
		Env: map[string]string{
			"DOCKER_BUILDKIT": "1",
			"CI":              "true",
		},
		Concurrency: &Concurrency{
			Group:            "ci-" + GitHubRef("ref"),
			CancelInProgress: true,
		},
		Jobs: []*Job{
			{
				ID:     "test",
				Name:   "Test backend",
				RunsOn: "ubuntu-latest",
				Steps: []*Step{
					{Uses: "actions/checkout@v4"},
					{Name: "Run tests", Run: "make -C apps/backend test"},
				},
			},
			{
				ID:     "build",
				Needs:  []string{"test"},
				RunsOn: "ubuntu-latest",
				Steps: []*Step{
					{Uses: "actions/checkout@v4"},
					{Name: "Build image", Run: "docker build apps/backend"},
				},
			},
		},
	}
}

func TestWorkflowYAML(t *testing.T) {
	data, err := testWorkflow().YAML()
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "# This file was generated by nopo-ci. DO NOT EDIT.\n"),
		"compiled output must carry the generated header")

	for _, expected := range []string{
		"name: CI",
		"push:",
		"pull_request:",
		"- main",
		"- apps/backend/**",
		"contents: read",
		"cancel-in-progress: true",
		"jobs:",
		"runs-on: ubuntu-latest",
		"- uses: actions/checkout@v4",
		"name: Run tests",
		"run: make -C apps/backend test",
		"needs:",
	} {
		assert.Contains(t, out, expected)
	}

	// The on block is present as a top-level key (not to be confused with
	// runs-on).
	assert.Regexp(t, regexp.MustCompile(`(?m)^"?on"?:`), out)
}

func TestWorkflowYAMLKeyOrder(t *testing.T) {
	data, err := testWorkflow().YAML()
	require.NoError(t, err)
	out := string(data)

	indexOf := func(s string) int {
		idx := strings.Index(out, s)
		require.GreaterOrEqual(t, idx, 0, "missing %q in output", s)
		return idx
	}

	// Top-level keys render in the conventional order.
	assert.Less(t, indexOf("name: CI"), indexOf("push:"))
	assert.Less(t, indexOf("push:"), indexOf("permissions:"))
	assert.Less(t, indexOf("permissions:"), indexOf("env:"))
	assert.Less(t, indexOf("env:"), indexOf("concurrency:"))
	assert.Less(t, indexOf("concurrency:"), indexOf("jobs:"))

	// Jobs render in declaration order, env keys sorted.
	assert.Less(t, indexOf("test:"), indexOf("build:"))
	assert.Less(t, indexOf("CI: "), indexOf("DOCKER_BUILDKIT: "))
}

func TestWorkflowYAMLIsDeterministic(t *testing.T) {
	first, err := testWorkflow().YAML()
	require.NoError(t, err)

	for range 10 {
		again, err := testWorkflow().YAML()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestTriggersScheduleAndDispatch(t *testing.T) {
	w := &Workflow{
		Name: "Issue triage",
		On: Triggers{
			Issues:   &EventTypesFilter{Types: []string{"opened", "reopened"}},
			Schedule: []string{"*/15 * * * *"},
			WorkflowDispatch: &WorkflowDispatch{
				Inputs: []*Input{
					{
						Name:        "dry_run",
						Description: "Log actions without applying them",
						Type:        "boolean",
						Default:     "false",
					},
				},
			},
		},
		Jobs: []*Job{
			{
				ID:     "triage",
				RunsOn: "ubuntu-latest",
				Steps:  []*Step{{Name: "Triage", Run: "gh issue list"}},
			},
		},
	}

	data, err := w.YAML()
	require.NoError(t, err)
	out := string(data)

	for _, expected := range []string{
		"issues:",
		"- opened",
		"- reopened",
		"schedule:",
		"cron: ",
		"*/15 * * * *",
		"workflow_dispatch:",
		"inputs:",
		"dry_run:",
		"type: boolean",
	} {
		assert.Contains(t, out, expected)
	}
}

func TestWorkflowRunTrigger(t *testing.T) {
	w := &Workflow{
		Name: "CI autofix",
		On: Triggers{
			WorkflowRun: &WorkflowRun{
				Workflows: []string{"CI"},
				Types:     []string{"completed"},
				Branches:  []string{"main"},
			},
		},
		Jobs: []*Job{
			{
				ID:     "autofix",
				If:     "${{ github.event.workflow_run.conclusion == 'failure' }}",
				RunsOn: "ubuntu-latest",
				Steps:  []*Step{{Run: "gh run view"}},
			},
		},
	}

	data, err := w.YAML()
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "workflow_run:")
	assert.Contains(t, out, "workflows:")
	assert.Contains(t, out, "- completed")
	assert.Contains(t, out, "if: ${{ github.event.workflow_run.conclusion == 'failure' }}")
}

func TestStepKeyOrder(t *testing.T) {
	job := &Job{
		ID:     "deploy",
		RunsOn: "ubuntu-latest",
		Steps: []*Step{
			{
				ID:   "push",
				Name: "Push image",
				Uses: "docker/build-push-action@v6",
				With: map[string]string{
					"push": "true",
					"tags": "ghcr.io/kevin-mind/backend:latest",
				},
			},
		},
	}
	w := &Workflow{
		Name: "Deploy",
		On:   Triggers{Push: &PushFilter{Branches: []string{"main"}}},
		Jobs: []*Job{job},
	}

	data, err := w.YAML()
	require.NoError(t, err)
	out := string(data)

	idIdx := strings.Index(out, "id: push")
	nameIdx := strings.Index(out, "name: Push image")
	usesIdx := strings.Index(out, "uses: docker/build-push-action@v6")
	withIdx := strings.Index(out, "with:")
	require.True(t, idIdx >= 0 && nameIdx >= 0 && usesIdx >= 0 && withIdx >= 0, "output:\n%s", out)
	assert.Less(t, idIdx, nameIdx)
	assert.Less(t, nameIdx, usesIdx)
	assert.Less(t, usesIdx, withIdx)
}

func TestMatrixStrategy(t *testing.T) {
	failFast := false
	w := &Workflow{
		Name: "CI",
		On:   Triggers{Push: &PushFilter{Branches: []string{"main"}}},
		Jobs: []*Job{
			{
				ID:     "test",
				RunsOn: "ubuntu-latest",
				Strategy: &Strategy{
					FailFast: &failFast,
					Matrix:   map[string][]any{"app": {"backend", "trading"}},
				},
				Steps: []*Step{{Run: "make -C apps/" + MatrixRef("app") + " test"}},
			},
		},
	}

	data, err := w.YAML()
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "strategy:")
	assert.Contains(t, out, "fail-fast: false")
	assert.Contains(t, out, "matrix:")
	assert.Contains(t, out, "- backend")
	assert.Contains(t, out, "- trading")
}
