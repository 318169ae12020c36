package pipelines

import (
	"fmt"

	"github.com/kevin-mind/nopo/pkg/manifest"
	"github.com/kevin-mind/nopo/pkg/workflow"
)

// The bot workflows are thin loops over the gh CLI. The manifest toggles
// each one and, for the triage bot, sets how often it sweeps.

// IssueTriage defines the issue triage bot: label fresh issues and sweep
// stale ones on a schedule.
func IssueTriage() *Definition {
	return &Definition{
		Name:        "issue-triage",
		Description: "Label new issues and sweep the backlog on a schedule",
		Build:       buildIssueTriage,
	}
}

func buildIssueTriage(m *manifest.Manifest) (*workflow.Workflow, error) {
	cfg := m.Bots.IssueTriage
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "every 30 minutes"
	}
	cron, err := workflow.ParseSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid issue_triage schedule: %w", err)
	}

	return &workflow.Workflow{
		Name: "Issue triage",
		On: workflow.Triggers{
			Issues:           &workflow.EventTypesFilter{Types: []string{"opened", "reopened"}},
			Schedule:         []string{cron},
			WorkflowDispatch: &workflow.WorkflowDispatch{},
		},
		Permissions: &workflow.Permissions{
			Contents: workflow.PermissionRead,
			Issues:   workflow.PermissionWrite,
		},
		Concurrency: &workflow.Concurrency{Group: "issue-triage"},
		Jobs: []*workflow.Job{
			{
				ID:             "triage",
				RunsOn:         "ubuntu-latest",
				TimeoutMinutes: 10,
				Steps: []*workflow.Step{
					{
						Name: "Label incoming issue",
						If:   "${{ github.event_name == 'issues' }}",
						Env:  ghTokenEnv(),
						Run: "gh issue edit \"${{ github.event.issue.number }}\" \\\n" +
							"  --repo \"${{ github.repository }}\" \\\n" +
							"  --add-label needs-triage",
					},
					{
						Name: "Sweep unlabeled backlog",
						If:   "${{ github.event_name != 'issues' }}",
						Env:  ghTokenEnv(),
						Run: "gh issue list --repo \"${{ github.repository }}\" \\\n" +
							"  --state open --search 'no:label' --json number --jq '.[].number' |\n" +
							"while read -r number; do\n" +
							"  gh issue edit \"$number\" --repo \"${{ github.repository }}\" --add-label needs-triage\n" +
							"done",
					},
				},
			},
		},
	}, nil
}

// PRReview defines the PR review bot: post a summary comment when a pull
// request becomes reviewable.
func PRReview() *Definition {
	return &Definition{
		Name:        "pr-review",
		Description: "Post an automated review summary on reviewable pull requests",
		Build:       buildPRReview,
	}
}

func buildPRReview(m *manifest.Manifest) (*workflow.Workflow, error) {
	cfg := m.Bots.PRReview
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	return &workflow.Workflow{
		Name: "PR review",
		On: workflow.Triggers{
			PullRequest: &workflow.PullRequestFilter{
				Types: []string{"opened", "ready_for_review"},
			},
		},
		Permissions: &workflow.Permissions{
			Contents:     workflow.PermissionRead,
			PullRequests: workflow.PermissionWrite,
		},
		Concurrency: &workflow.Concurrency{
			Group:            "pr-review-" + workflow.GitHubRef("event.pull_request.number"),
			CancelInProgress: true,
		},
		Jobs: []*workflow.Job{
			{
				ID:             "review",
				If:             "${{ !github.event.pull_request.draft }}",
				RunsOn:         "ubuntu-latest",
				TimeoutMinutes: 15,
				Steps: []*workflow.Step{
					checkoutStep(),
					{
						Name: "Summarize the diff",
						Env:  ghTokenEnv(),
						Run: "gh pr diff \"${{ github.event.pull_request.number }}\" --stat > /tmp/diffstat.txt\n" +
							"{\n" +
							"  echo '## Automated review'\n" +
							"  echo\n" +
							"  echo '```'\n" +
							"  cat /tmp/diffstat.txt\n" +
							"  echo '```'\n" +
							"} > /tmp/review.md",
					},
					{
						Name: "Post review comment",
						Env:  ghTokenEnv(),
						Run: "gh pr comment \"${{ github.event.pull_request.number }}\" \\\n" +
							"  --repo \"${{ github.repository }}\" \\\n" +
							"  --body-file /tmp/review.md --edit-last --create-if-none",
					},
				},
			},
		},
	}, nil
}

// CIAutofix defines the CI failure bot: when the CI workflow fails on main,
// collect the failing logs and open a fix-up pull request branch.
func CIAutofix() *Definition {
	return &Definition{
		Name:        "ci-autofix",
		Description: "Open a fix-up branch when CI fails on main",
		Build:       buildCIAutofix,
	}
}

func buildCIAutofix(m *manifest.Manifest) (*workflow.Workflow, error) {
	cfg := m.Bots.CIAutofix
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	return &workflow.Workflow{
		Name: "CI autofix",
		On: workflow.Triggers{
			WorkflowRun: &workflow.WorkflowRun{
				Workflows: []string{"CI"},
				Types:     []string{"completed"},
				Branches:  []string{"main"},
			},
		},
		Permissions: &workflow.Permissions{
			Actions:      workflow.PermissionRead,
			Contents:     workflow.PermissionWrite,
			PullRequests: workflow.PermissionWrite,
		},
		Concurrency: &workflow.Concurrency{Group: "ci-autofix"},
		Jobs: []*workflow.Job{
			{
				ID:             "autofix",
				If:             "${{ github.event.workflow_run.conclusion == 'failure' }}",
				RunsOn:         "ubuntu-latest",
				TimeoutMinutes: 20,
				Steps: []*workflow.Step{
					checkoutStep(),
					{
						ID:   "logs",
						Name: "Collect failing logs",
						Env:  ghTokenEnv(),
						Run: "gh run view \"${{ github.event.workflow_run.id }}\" \\\n" +
							"  --repo \"${{ github.repository }}\" --log-failed > /tmp/ci-failure.log\n" +
							"tail -n 200 /tmp/ci-failure.log",
					},
					{
						Name: "Open autofix pull request",
						Env:  ghTokenEnv(),
						Run: "git config user.name \"github-actions[bot]\"\n" +
							"git config user.email \"41898282+github-actions[bot]@users.noreply.github.com\"\n" +
							"branch=\"ci-autofix/${{ github.event.workflow_run.id }}\"\n" +
							"git checkout -b \"$branch\"\n" +
							"git commit --allow-empty -m 'ci: placeholder for automated fix'\n" +
							"git push origin \"$branch\"\n" +
							"gh pr create --repo \"${{ github.repository }}\" \\\n" +
							"  --title \"Fix CI failure in run ${{ github.event.workflow_run.id }}\" \\\n" +
							"  --body-file /tmp/ci-failure.log \\\n" +
							"  --base main --head \"$branch\" --draft",
					},
				},
			},
		},
	}, nil
}
