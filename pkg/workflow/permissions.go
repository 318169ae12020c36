package workflow

import "github.com/goccy/go-yaml"

// PermissionLevel is an access level for a GITHUB_TOKEN permission scope.
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionNone  PermissionLevel = "none"
)

// Permissions models the GITHUB_TOKEN permission scopes the nopo pipelines
// use. Unset scopes are omitted from the output, which means "none" under
// GitHub's default for an explicit permissions block.
type Permissions struct {
	Actions      PermissionLevel
	Checks       PermissionLevel
	Contents     PermissionLevel
	Deployments  PermissionLevel
	IDToken      PermissionLevel
	Issues       PermissionLevel
	Packages     PermissionLevel
	PullRequests PermissionLevel
	Statuses     PermissionLevel
}

// ContentsReadPermissions is the minimal permission set for jobs that only
// check out code.
func ContentsReadPermissions() *Permissions {
	return &Permissions{Contents: PermissionRead}
}

// MarshalYAML renders scopes in GitHub's documented order, skipping unset
// ones.
func (p *Permissions) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	add := func(key string, level PermissionLevel) {
		if level != "" {
			ms = append(ms, yaml.MapItem{Key: key, Value: string(level)})
		}
	}
	add("actions", p.Actions)
	add("checks", p.Checks)
	add("contents", p.Contents)
	add("deployments", p.Deployments)
	add("id-token", p.IDToken)
	add("issues", p.Issues)
	add("packages", p.Packages)
	add("pull-requests", p.PullRequests)
	add("statuses", p.Statuses)
	return ms, nil
}
