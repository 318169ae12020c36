package pipelines

import (
	"fmt"

	"github.com/kevin-mind/nopo/pkg/manifest"
	"github.com/kevin-mind/nopo/pkg/workflow"
)

// CI defines the build-and-test workflow: one test job per app that declares
// a test command, plus a docker build job per service, gated on its tests.
func CI() *Definition {
	return &Definition{
		Name:        "ci",
		Description: "Build and test every app on pushes and pull requests",
		Build:       buildCI,
	}
}

func buildCI(m *manifest.Manifest) (*workflow.Workflow, error) {
	w := &workflow.Workflow{
		Name: "CI",
		On: workflow.Triggers{
			Push:        &workflow.PushFilter{Branches: []string{"main"}},
			PullRequest: &workflow.PullRequestFilter{Branches: []string{"main"}},
		},
		Permissions: workflow.ContentsReadPermissions(),
		Concurrency: &workflow.Concurrency{
			Group:            "ci-" + workflow.GitHubRef("ref"),
			CancelInProgress: true,
		},
		Env: map[string]string{"CI": "true"},
	}

	for _, app := range m.Apps {
		if app.Test == "" {
			continue
		}
		w.Jobs = append(w.Jobs, &workflow.Job{
			ID:             "test-" + app.Name,
			Name:           fmt.Sprintf("Test %s", app.Name),
			RunsOn:         "ubuntu-latest",
			TimeoutMinutes: 30,
			Steps: []*workflow.Step{
				checkoutStep(),
				{Name: "Run tests", Run: app.Test},
			},
		})
	}

	for _, app := range m.AppsOfKind(manifest.KindService) {
		if app.Dockerfile == "" {
			continue
		}
		job := &workflow.Job{
			ID:             "build-" + app.Name,
			Name:           fmt.Sprintf("Build %s image", app.Name),
			RunsOn:         "ubuntu-latest",
			TimeoutMinutes: 30,
			Steps: []*workflow.Step{
				checkoutStep(),
				{
					Name: "Build image",
					Run: fmt.Sprintf("docker build --file %s --tag %s:%s %s",
						app.Dockerfile, imageName(m, app), workflow.GitHubRef("sha"), app.Path),
				},
			},
		}
		if app.Test != "" {
			job.Needs = []string{"test-" + app.Name}
		}
		w.Jobs = append(w.Jobs, job)
	}

	if len(w.Jobs) == 0 {
		return nil, fmt.Errorf("manifest declares no testable or buildable apps")
	}
	return w, nil
}

// imageName is the registry path for an app's container image.
func imageName(m *manifest.Manifest, app *manifest.App) string {
	return fmt.Sprintf("ghcr.io/kevin-mind/%s-%s", m.Name, app.Name)
}
