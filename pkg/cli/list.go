package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kevin-mind/nopo/pkg/console"
	"github.com/kevin-mind/nopo/pkg/manifest"
	"github.com/kevin-mind/nopo/pkg/pipelines"
)

// WorkflowListItem describes one workflow for list output.
type WorkflowListItem struct {
	Workflow    string `json:"workflow"`
	Description string `json:"description"`
	Jobs        int    `json:"jobs"`
	Compiled    string `json:"compiled"` // up to date, stale, missing, disabled
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows and their compile state",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, outputDir, err := resolvePaths(cmd)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			return RunList(manifestPath, outputDir, asJSON)
		},
	}

	cmd.Flags().Bool("json", false, "output as JSON")

	return cmd
}

// RunList prints each defined workflow with its current compile state.
func RunList(manifestPath, outputDir string, asJSON bool) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	items, err := collectListItems(m, outputDir)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal workflow list: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Workflow, item.Description, strconv.Itoa(item.Jobs), item.Compiled})
	}
	fmt.Print(console.RenderTable(console.TableConfig{
		Title:   fmt.Sprintf("Workflows for %s", m.Name),
		Headers: []string{"Workflow", "Description", "Jobs", "Compiled"},
		Rows:    rows,
	}))
	return nil
}

// collectListItems builds every workflow and compares its rendered YAML
// against the file on disk.
func collectListItems(m *manifest.Manifest, outputDir string) ([]WorkflowListItem, error) {
	var items []WorkflowListItem
	for _, def := range pipelines.All() {
		wf, err := def.Build(m)
		if err != nil {
			return nil, fmt.Errorf("failed to build workflow %s: %w", def.Name, err)
		}

		item := WorkflowListItem{Workflow: def.Name, Description: def.Description}
		if wf == nil {
			item.Compiled = "disabled"
			items = append(items, item)
			continue
		}

		item.Jobs = len(wf.Jobs)
		data, err := wf.YAML()
		if err != nil {
			return nil, err
		}

		existing, err := os.ReadFile(workflowFilePath(outputDir, def.Name))
		switch {
		case err != nil:
			item.Compiled = "missing"
		case bytes.Equal(existing, data):
			item.Compiled = "up to date"
		default:
			item.Compiled = "stale"
		}
		items = append(items, item)
	}
	return items, nil
}
