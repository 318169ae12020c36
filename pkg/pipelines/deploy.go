package pipelines

import (
	"fmt"

	"github.com/kevin-mind/nopo/pkg/manifest"
	"github.com/kevin-mind/nopo/pkg/workflow"
)

// Deploy defines the release workflow: for every app with a deploy target,
// build and push its image, then roll it out with terraform. Runs on pushes
// to main and on manual dispatch.
func Deploy() *Definition {
	return &Definition{
		Name:        "deploy",
		Description: "Build, push, and deploy every app with a deploy target",
		Build:       buildDeploy,
	}
}

func buildDeploy(m *manifest.Manifest) (*workflow.Workflow, error) {
	apps := m.DeployableApps()
	if len(apps) == 0 {
		return nil, nil
	}

	w := &workflow.Workflow{
		Name: "Deploy",
		On: workflow.Triggers{
			Push: &workflow.PushFilter{Branches: []string{"main"}},
			WorkflowDispatch: &workflow.WorkflowDispatch{
				Inputs: []*workflow.Input{
					{
						Name:        "app",
						Description: "Deploy a single app instead of all of them",
						Type:        "string",
					},
				},
			},
		},
		Permissions: &workflow.Permissions{
			Contents: workflow.PermissionRead,
			Packages: workflow.PermissionWrite,
			IDToken:  workflow.PermissionWrite,
		},
		// One deploy at a time; queued runs wait instead of cancelling an
		// in-flight terraform apply.
		Concurrency: &workflow.Concurrency{Group: "deploy"},
	}

	for _, app := range apps {
		pushJobID := "push-" + app.Name
		onlyThisApp := fmt.Sprintf(
			"${{ github.event_name != 'workflow_dispatch' || inputs.app == '' || inputs.app == '%s' }}",
			app.Name)

		w.Jobs = append(w.Jobs, &workflow.Job{
			ID:             pushJobID,
			Name:           fmt.Sprintf("Push %s image", app.Name),
			If:             onlyThisApp,
			RunsOn:         "ubuntu-latest",
			TimeoutMinutes: 30,
			Outputs: map[string]string{
				"image": workflow.StepOutput("meta", "image"),
			},
			Steps: []*workflow.Step{
				checkoutStep(),
				{
					Name: "Log in to registry",
					Uses: "docker/login-action@v3",
					With: map[string]string{
						"registry": "ghcr.io",
						"username": workflow.GitHubRef("actor"),
						"password": workflow.SecretRef("GITHUB_TOKEN"),
					},
				},
				{
					ID:   "meta",
					Name: "Compute image name",
					Run: fmt.Sprintf("echo \"image=%s:%s\" >> \"$GITHUB_OUTPUT\"",
						imageName(m, app), workflow.GitHubRef("sha")),
				},
				{
					Name: "Build and push",
					Uses: "docker/build-push-action@v6",
					With: map[string]string{
						"context": app.Path,
						"file":    app.Dockerfile,
						"push":    "true",
						"tags":    workflow.StepOutput("meta", "image"),
					},
				},
			},
		})

		w.Jobs = append(w.Jobs, &workflow.Job{
			ID:             "deploy-" + app.Name,
			Name:           fmt.Sprintf("Deploy %s to %s", app.Name, app.Deploy.Environment),
			Needs:          []string{pushJobID},
			RunsOn:         "ubuntu-latest",
			Environment:    app.Deploy.Environment,
			TimeoutMinutes: 30,
			Env: map[string]string{
				"GOOGLE_CREDENTIALS": workflow.SecretRef("GCLOUD_SERVICE_KEY"),
				"TF_IN_AUTOMATION":   "true",
			},
			Steps: []*workflow.Step{
				checkoutStep(),
				{
					Name: "Set up terraform",
					Uses: "hashicorp/setup-terraform@v3",
				},
				{
					Name:             "Terraform init",
					Run:              "terraform init -input=false",
					WorkingDirectory: "infrastructure",
				},
				{
					Name: "Terraform apply",
					Run: fmt.Sprintf(
						"terraform apply -input=false -auto-approve \\\n"+
							"  -var service=%s \\\n"+
							"  -var image=%s",
						app.Deploy.Service, workflow.NeedsOutput(pushJobID, "image")),
					WorkingDirectory: "infrastructure",
				},
			},
		})
	}

	return w, nil
}
