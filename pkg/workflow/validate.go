package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kevin-mind/nopo/pkg/logger"
)

// jobIDPattern matches the identifiers GitHub accepts for job and step IDs.
var jobIDPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// Validate checks the workflow for the structural mistakes the Actions
// runner would otherwise reject at run time: missing triggers, duplicate or
// malformed job IDs, dangling needs references, needs cycles, and steps that
// declare both or neither of uses/run.
func (w *Workflow) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("workflow has no name")
	}
	if w.On.empty() {
		return fmt.Errorf("workflow %q has no triggers", w.Name)
	}
	if len(w.Jobs) == 0 {
		return fmt.Errorf("workflow %q has no jobs", w.Name)
	}

	seen := make(map[string]bool, len(w.Jobs))
	for _, job := range w.Jobs {
		if !jobIDPattern.MatchString(job.ID) {
			return fmt.Errorf("workflow %q: invalid job ID %q", w.Name, job.ID)
		}
		if seen[job.ID] {
			return fmt.Errorf("workflow %q: duplicate job ID %q", w.Name, job.ID)
		}
		seen[job.ID] = true

		if err := job.validate(); err != nil {
			return fmt.Errorf("workflow %q: %w", w.Name, err)
		}
	}

	for _, job := range w.Jobs {
		for _, dep := range job.Needs {
			if !seen[dep] {
				return fmt.Errorf("workflow %q: job %q needs unknown job %q", w.Name, job.ID, dep)
			}
		}
	}

	if cycle := findNeedsCycle(w.Jobs); len(cycle) > 0 {
		return fmt.Errorf("workflow %q: needs cycle: %s", w.Name, strings.Join(cycle, " -> "))
	}

	logger.Debug("workflow validated", map[string]any{"workflow": w.Name, "jobs": len(w.Jobs)})
	return nil
}

func (j *Job) validate() error {
	if j.RunsOn == "" {
		return fmt.Errorf("job %q has no runs-on", j.ID)
	}
	if len(j.Steps) == 0 {
		return fmt.Errorf("job %q has no steps", j.ID)
	}
	for i, step := range j.Steps {
		hasUses := step.Uses != ""
		hasRun := step.Run != ""
		if hasUses == hasRun {
			return fmt.Errorf("job %q step %d must set exactly one of uses or run", j.ID, i+1)
		}
		if step.ID != "" && !jobIDPattern.MatchString(step.ID) {
			return fmt.Errorf("job %q step %d has invalid ID %q", j.ID, i+1, step.ID)
		}
	}
	return nil
}

// findNeedsCycle runs a depth-first walk over the needs graph and returns
// the first cycle found as a job ID path, or nil when the graph is acyclic.
func findNeedsCycle(jobs []*Job) []string {
	needs := make(map[string][]string, len(jobs))
	for _, job := range jobs {
		needs[job.ID] = job.Needs
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(jobs))

	var path []string
	var walk func(id string) []string
	walk = func(id string) []string {
		state[id] = visiting
		path = append(path, id)
		for _, dep := range needs[id] {
			switch state[dep] {
			case visiting:
				// Close the loop for the error message.
				for i, p := range path {
					if p == dep {
						return append(path[i:], dep)
					}
				}
				return []string{dep, id, dep}
			case unvisited:
				if cycle := walk(dep); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, job := range jobs {
		if state[job.ID] == unvisited {
			if cycle := walk(job.ID); cycle != nil {
				return cycle
			}
		}
		path = path[:0]
	}
	return nil
}
