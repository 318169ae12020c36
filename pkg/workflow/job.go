package workflow

import (
	"maps"
	"slices"

	"github.com/goccy/go-yaml"
)

// Job is a single job in a workflow. The ID becomes the key under "jobs".
type Job struct {
	ID             string
	Name           string
	Needs          []string
	If             string
	RunsOn         string
	Environment    string
	Concurrency    *Concurrency
	Permissions    *Permissions
	TimeoutMinutes int
	Strategy       *Strategy
	Env            map[string]string
	Outputs        map[string]string
	Steps          []*Step
}

// Strategy maps to the job strategy block.
type Strategy struct {
	Matrix      map[string][]any
	FailFast    *bool
	MaxParallel int
}

// Step is one step of a job. Exactly one of Uses or Run must be set.
type Step struct {
	ID               string
	Name             string
	If               string
	Uses             string
	Run              string
	Shell            string
	WorkingDirectory string
	With             map[string]string
	Env              map[string]string
	ContinueOnError  bool
	TimeoutMinutes   int
}

// AddStep appends a step and returns the job for chaining.
func (j *Job) AddStep(step *Step) *Job {
	j.Steps = append(j.Steps, step)
	return j
}

// MarshalYAML renders job keys in the conventional order.
func (j *Job) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	if j.Name != "" {
		ms = append(ms, yaml.MapItem{Key: "name", Value: j.Name})
	}
	if len(j.Needs) > 0 {
		ms = append(ms, yaml.MapItem{Key: "needs", Value: j.Needs})
	}
	if j.If != "" {
		ms = append(ms, yaml.MapItem{Key: "if", Value: j.If})
	}
	ms = append(ms, yaml.MapItem{Key: "runs-on", Value: j.RunsOn})
	if j.Environment != "" {
		ms = append(ms, yaml.MapItem{Key: "environment", Value: j.Environment})
	}
	if j.Concurrency != nil {
		ms = append(ms, yaml.MapItem{Key: "concurrency", Value: j.Concurrency})
	}
	if j.Permissions != nil {
		ms = append(ms, yaml.MapItem{Key: "permissions", Value: j.Permissions})
	}
	if j.TimeoutMinutes > 0 {
		ms = append(ms, yaml.MapItem{Key: "timeout-minutes", Value: j.TimeoutMinutes})
	}
	if j.Strategy != nil {
		ms = append(ms, yaml.MapItem{Key: "strategy", Value: j.Strategy})
	}
	if len(j.Env) > 0 {
		ms = append(ms, yaml.MapItem{Key: "env", Value: sortedStringMap(j.Env)})
	}
	if len(j.Outputs) > 0 {
		ms = append(ms, yaml.MapItem{Key: "outputs", Value: sortedStringMap(j.Outputs)})
	}
	ms = append(ms, yaml.MapItem{Key: "steps", Value: j.Steps})
	return ms, nil
}

func (s *Strategy) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	if s.FailFast != nil {
		ms = append(ms, yaml.MapItem{Key: "fail-fast", Value: *s.FailFast})
	}
	if s.MaxParallel > 0 {
		ms = append(ms, yaml.MapItem{Key: "max-parallel", Value: s.MaxParallel})
	}
	if len(s.Matrix) > 0 {
		matrix := yaml.MapSlice{}
		for _, k := range slices.Sorted(maps.Keys(s.Matrix)) {
			matrix = append(matrix, yaml.MapItem{Key: k, Value: s.Matrix[k]})
		}
		ms = append(ms, yaml.MapItem{Key: "matrix", Value: matrix})
	}
	return ms, nil
}

// MarshalYAML renders step keys in the conventional order.
func (s *Step) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	if s.ID != "" {
		ms = append(ms, yaml.MapItem{Key: "id", Value: s.ID})
	}
	if s.Name != "" {
		ms = append(ms, yaml.MapItem{Key: "name", Value: s.Name})
	}
	if s.If != "" {
		ms = append(ms, yaml.MapItem{Key: "if", Value: s.If})
	}
	if s.Uses != "" {
		ms = append(ms, yaml.MapItem{Key: "uses", Value: s.Uses})
	}
	if len(s.With) > 0 {
		ms = append(ms, yaml.MapItem{Key: "with", Value: sortedStringMap(s.With)})
	}
	if s.Run != "" {
		ms = append(ms, yaml.MapItem{Key: "run", Value: s.Run})
	}
	if s.Shell != "" {
		ms = append(ms, yaml.MapItem{Key: "shell", Value: s.Shell})
	}
	if s.WorkingDirectory != "" {
		ms = append(ms, yaml.MapItem{Key: "working-directory", Value: s.WorkingDirectory})
	}
	if len(s.Env) > 0 {
		ms = append(ms, yaml.MapItem{Key: "env", Value: sortedStringMap(s.Env)})
	}
	if s.ContinueOnError {
		ms = append(ms, yaml.MapItem{Key: "continue-on-error", Value: true})
	}
	if s.TimeoutMinutes > 0 {
		ms = append(ms, yaml.MapItem{Key: "timeout-minutes", Value: s.TimeoutMinutes})
	}
	return ms, nil
}
