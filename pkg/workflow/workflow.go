// Package workflow is a typed builder for GitHub Actions workflows. Pipeline
// definitions construct Workflow values in Go and marshal them to the YAML
// the Actions runner consumes. Emission is deterministic: struct fields and
// map keys always render in the same order, so compiled files diff cleanly.
package workflow

import (
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/kevin-mind/nopo/pkg/logger"
)

// GeneratedHeader is prepended to every compiled workflow file.
const GeneratedHeader = "# This file was generated by nopo-ci. DO NOT EDIT.\n" +
	"# To change this workflow, edit its definition under pkg/pipelines and run \"nopo-ci compile\".\n\n"

// Workflow is a complete GitHub Actions workflow.
type Workflow struct {
	Name        string
	RunName     string
	On          Triggers
	Permissions *Permissions
	Env         map[string]string
	Concurrency *Concurrency
	Jobs        []*Job // rendered in declaration order
}

// Concurrency maps to the workflow- or job-level concurrency block.
type Concurrency struct {
	Group            string
	CancelInProgress bool
}

// Triggers describes the "on" block. Only the event types the nopo pipelines
// use are modeled; adding one means adding a field here and a key in
// MarshalYAML so ordering stays fixed.
type Triggers struct {
	Push             *PushFilter
	PullRequest      *PullRequestFilter
	Issues           *EventTypesFilter
	IssueComment     *EventTypesFilter
	Schedule         []string // cron expressions, see ParseSchedule
	WorkflowDispatch *WorkflowDispatch
	WorkflowRun      *WorkflowRun
}

// PushFilter narrows push triggers by ref and path.
type PushFilter struct {
	Branches    []string
	Tags        []string
	Paths       []string
	PathsIgnore []string
}

// PullRequestFilter narrows pull_request triggers.
type PullRequestFilter struct {
	Branches []string
	Types    []string
	Paths    []string
}

// EventTypesFilter narrows an event trigger to specific activity types.
type EventTypesFilter struct {
	Types []string
}

// WorkflowDispatch declares manual trigger inputs.
type WorkflowDispatch struct {
	Inputs []*Input
}

// Input is a single workflow_dispatch input.
type Input struct {
	Name        string
	Description string
	Type        string // string, boolean, choice, environment
	Required    bool
	Default     string
	Options     []string
}

// WorkflowRun triggers on the completion of other workflows.
type WorkflowRun struct {
	Workflows []string
	Types     []string
	Branches  []string
}

// YAML validates the workflow and renders it, header included.
func (w *Workflow) YAML() ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("marshaling workflow", map[string]any{"workflow": w.Name, "jobs": len(w.Jobs)})

	body, err := yaml.MarshalWithOptions(w,
		yaml.Indent(2),
		yaml.IndentSequence(true),
		yaml.UseLiteralStyleIfMultiline(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow %q: %w", w.Name, err)
	}

	return append([]byte(GeneratedHeader), body...), nil
}

// MarshalYAML renders the workflow keys in the conventional order.
func (w *Workflow) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{{Key: "name", Value: w.Name}}
	if w.RunName != "" {
		ms = append(ms, yaml.MapItem{Key: "run-name", Value: w.RunName})
	}
	ms = append(ms, yaml.MapItem{Key: "on", Value: &w.On})
	if w.Permissions != nil {
		ms = append(ms, yaml.MapItem{Key: "permissions", Value: w.Permissions})
	}
	if len(w.Env) > 0 {
		ms = append(ms, yaml.MapItem{Key: "env", Value: sortedStringMap(w.Env)})
	}
	if w.Concurrency != nil {
		ms = append(ms, yaml.MapItem{Key: "concurrency", Value: w.Concurrency})
	}

	jobs := yaml.MapSlice{}
	for _, job := range w.Jobs {
		jobs = append(jobs, yaml.MapItem{Key: job.ID, Value: job})
	}
	ms = append(ms, yaml.MapItem{Key: "jobs", Value: jobs})

	return ms, nil
}

// MarshalYAML renders triggers in a fixed event order.
func (t *Triggers) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	if t.Push != nil {
		ms = append(ms, yaml.MapItem{Key: "push", Value: t.Push})
	}
	if t.PullRequest != nil {
		ms = append(ms, yaml.MapItem{Key: "pull_request", Value: t.PullRequest})
	}
	if t.Issues != nil {
		ms = append(ms, yaml.MapItem{Key: "issues", Value: t.Issues})
	}
	if t.IssueComment != nil {
		ms = append(ms, yaml.MapItem{Key: "issue_comment", Value: t.IssueComment})
	}
	if len(t.Schedule) > 0 {
		entries := make([]yaml.MapSlice, 0, len(t.Schedule))
		for _, cron := range t.Schedule {
			entries = append(entries, yaml.MapSlice{{Key: "cron", Value: cron}})
		}
		ms = append(ms, yaml.MapItem{Key: "schedule", Value: entries})
	}
	if t.WorkflowDispatch != nil {
		ms = append(ms, yaml.MapItem{Key: "workflow_dispatch", Value: t.WorkflowDispatch})
	}
	if t.WorkflowRun != nil {
		ms = append(ms, yaml.MapItem{Key: "workflow_run", Value: t.WorkflowRun})
	}
	return ms, nil
}

// empty reports whether no trigger is configured.
func (t *Triggers) empty() bool {
	return t.Push == nil && t.PullRequest == nil && t.Issues == nil &&
		t.IssueComment == nil && len(t.Schedule) == 0 &&
		t.WorkflowDispatch == nil && t.WorkflowRun == nil
}

func (f *PushFilter) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	if len(f.Branches) > 0 {
		ms = append(ms, yaml.MapItem{Key: "branches", Value: f.Branches})
	}
	if len(f.Tags) > 0 {
		ms = append(ms, yaml.MapItem{Key: "tags", Value: f.Tags})
	}
	if len(f.Paths) > 0 {
		ms = append(ms, yaml.MapItem{Key: "paths", Value: f.Paths})
	}
	if len(f.PathsIgnore) > 0 {
		ms = append(ms, yaml.MapItem{Key: "paths-ignore", Value: f.PathsIgnore})
	}
	return ms, nil
}

func (f *PullRequestFilter) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	if len(f.Types) > 0 {
		ms = append(ms, yaml.MapItem{Key: "types", Value: f.Types})
	}
	if len(f.Branches) > 0 {
		ms = append(ms, yaml.MapItem{Key: "branches", Value: f.Branches})
	}
	if len(f.Paths) > 0 {
		ms = append(ms, yaml.MapItem{Key: "paths", Value: f.Paths})
	}
	return ms, nil
}

func (f *EventTypesFilter) MarshalYAML() (any, error) {
	return yaml.MapSlice{{Key: "types", Value: f.Types}}, nil
}

func (d *WorkflowDispatch) MarshalYAML() (any, error) {
	if len(d.Inputs) == 0 {
		return yaml.MapSlice{}, nil
	}
	inputs := yaml.MapSlice{}
	for _, in := range d.Inputs {
		inputs = append(inputs, yaml.MapItem{Key: in.Name, Value: in})
	}
	return yaml.MapSlice{{Key: "inputs", Value: inputs}}, nil
}

func (in *Input) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{}
	if in.Description != "" {
		ms = append(ms, yaml.MapItem{Key: "description", Value: in.Description})
	}
	if in.Type != "" {
		ms = append(ms, yaml.MapItem{Key: "type", Value: in.Type})
	}
	if in.Required {
		ms = append(ms, yaml.MapItem{Key: "required", Value: true})
	}
	if in.Default != "" {
		ms = append(ms, yaml.MapItem{Key: "default", Value: in.Default})
	}
	if len(in.Options) > 0 {
		ms = append(ms, yaml.MapItem{Key: "options", Value: in.Options})
	}
	return ms, nil
}

func (r *WorkflowRun) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{{Key: "workflows", Value: r.Workflows}}
	if len(r.Types) > 0 {
		ms = append(ms, yaml.MapItem{Key: "types", Value: r.Types})
	}
	if len(r.Branches) > 0 {
		ms = append(ms, yaml.MapItem{Key: "branches", Value: r.Branches})
	}
	return ms, nil
}

func (c *Concurrency) MarshalYAML() (any, error) {
	ms := yaml.MapSlice{{Key: "group", Value: c.Group}}
	if c.CancelInProgress {
		ms = append(ms, yaml.MapItem{Key: "cancel-in-progress", Value: true})
	}
	return ms, nil
}

// sortedStringMap renders a string map with sorted keys so output is stable.
func sortedStringMap(m map[string]string) yaml.MapSlice {
	ms := yaml.MapSlice{}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		ms = append(ms, yaml.MapItem{Key: k, Value: m[k]})
	}
	return ms
}
