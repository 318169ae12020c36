package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/kevin-mind/nopo/pkg/console"
	"github.com/kevin-mind/nopo/pkg/envutil"
	"github.com/kevin-mind/nopo/pkg/logger"
	"github.com/kevin-mind/nopo/pkg/manifest"
	"github.com/kevin-mind/nopo/pkg/pipelines"
)

// CompileOptions configures one compile run.
type CompileOptions struct {
	ManifestPath string
	OutputDir    string
	Workflows    []string // empty means all
	DryRun       bool
}

// compileResult records what happened to one workflow file.
type compileResult struct {
	Name   string
	Path   string
	Action string // created, updated, unchanged
	Jobs   int
	data   []byte // rendered YAML, kept for dry-run output
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [workflow...]",
		Short: "Compile pipeline definitions to workflow YAML",
		Long: `Compile the pipeline definitions into .github/workflows files.

Without arguments every enabled workflow is compiled. Passing names limits
compilation to those workflows.

Examples:
  nopo-ci compile                 # compile everything
  nopo-ci compile ci deploy       # compile two workflows
  nopo-ci compile --dry-run       # print YAML to stdout instead of writing
  nopo-ci compile --watch         # recompile whenever the manifest changes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, outputDir, err := resolvePaths(cmd)
			if err != nil {
				return err
			}

			opts := CompileOptions{
				ManifestPath: manifestPath,
				OutputDir:    outputDir,
				Workflows:    args,
			}
			opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
			watch, _ := cmd.Flags().GetBool("watch")

			if watch {
				return RunCompileWatch(cmd.Context(), opts)
			}
			return RunCompile(opts)
		},
	}

	cmd.Flags().Bool("dry-run", false, "print compiled YAML to stdout without writing files")
	cmd.Flags().Bool("watch", false, "recompile whenever the manifest changes")

	return cmd
}

// RunCompile performs a single compile pass.
func RunCompile(opts CompileOptions) error {
	runID := uuid.NewString()[:8]
	logger.Info("starting compile run", map[string]any{
		"run_id":   runID,
		"manifest": opts.ManifestPath,
		"dry_run":  opts.DryRun,
	})

	m, err := manifest.Load(opts.ManifestPath)
	if err != nil {
		return err
	}

	compiled, err := pipelines.Build(m)
	if err != nil {
		return err
	}

	compiled, err = filterWorkflows(compiled, opts.Workflows)
	if err != nil {
		return err
	}

	if !opts.DryRun {
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Workflows compile independently, so fan out across a bounded pool.
	maxParallel := envutil.GetIntFromEnv("NOPO_MAX_PARALLEL", 4, 1, 16)
	p := pool.New().WithErrors().WithMaxGoroutines(maxParallel)

	var mu sync.Mutex
	var results []compileResult

	for _, c := range compiled {
		p.Go(func() error {
			result, err := compileOne(c, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	if opts.DryRun {
		for _, r := range results {
			fmt.Printf("--- %s\n%s", r.Path, r.data)
		}
	}
	printCompileSummary(results, runID, opts.DryRun)
	return nil
}

// compileOne renders a single workflow and writes it; in dry-run mode the
// rendered bytes are kept on the result instead.
func compileOne(c *pipelines.Compiled, opts CompileOptions) (compileResult, error) {
	name := c.Definition.Name
	data, err := c.Workflow.YAML()
	if err != nil {
		return compileResult{}, err
	}

	result := compileResult{
		Name: name,
		Path: workflowFilePath(opts.OutputDir, name),
		Jobs: len(c.Workflow.Jobs),
	}

	if opts.DryRun {
		// Printing happens after the pool drains so output order is stable.
		result.Action = "unchanged"
		result.data = data
		return result, nil
	}

	existing, err := os.ReadFile(result.Path)
	switch {
	case err == nil && bytes.Equal(existing, data):
		result.Action = "unchanged"
		return result, nil
	case err == nil:
		result.Action = "updated"
	default:
		result.Action = "created"
	}

	if err := os.WriteFile(result.Path, data, 0644); err != nil {
		return compileResult{}, fmt.Errorf("failed to write %s: %w", result.Path, err)
	}

	logger.Debug("wrote workflow file", map[string]any{
		"workflow": name,
		"path":     result.Path,
		"bytes":    len(data),
	})
	return result, nil
}

// filterWorkflows narrows the compiled set to the requested names.
func filterWorkflows(compiled []*pipelines.Compiled, names []string) ([]*pipelines.Compiled, error) {
	if len(names) == 0 {
		return compiled, nil
	}

	byName := make(map[string]*pipelines.Compiled, len(compiled))
	for _, c := range compiled {
		byName[c.Definition.Name] = c
	}

	var filtered []*pipelines.Compiled
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			var available []string
			for _, d := range pipelines.All() {
				available = append(available, d.Name)
			}
			fmt.Fprint(os.Stderr, console.FormatErrorWithSuggestions(
				fmt.Sprintf("workflow '%s' not found", name),
				[]string{
					"Run 'nopo-ci list' to see all defined workflows",
					fmt.Sprintf("Defined workflows: %v", available),
				}))
			return nil, fmt.Errorf("unknown workflow %q", name)
		}
		filtered = append(filtered, c)
	}
	return filtered, nil
}

func printCompileSummary(results []compileResult, runID string, dryRun bool) {
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Action]++
	}

	if dryRun {
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage(
			fmt.Sprintf("Dry run: %d workflow(s) compiled, nothing written", len(results))))
		return
	}

	fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf(
		"Compiled %d workflow(s): %d created, %d updated, %d unchanged",
		len(results), counts["created"], counts["updated"], counts["unchanged"])))

	for _, r := range results {
		if r.Action != "unchanged" {
			fmt.Fprintln(os.Stderr, console.FormatLocationMessage(
				fmt.Sprintf("%s (%s)", console.ToRelativePath(r.Path), r.Action)))
		}
	}

	logger.Info("compile run finished", map[string]any{
		"run_id":    runID,
		"workflows": len(results),
		"created":   counts["created"],
		"updated":   counts["updated"],
		"unchanged": counts["unchanged"],
	})
}

// RunCompileWatch compiles once, then recompiles every time the manifest
// changes, until the context is cancelled or an interrupt arrives.
func RunCompileWatch(ctx context.Context, opts CompileOptions) error {
	if err := RunCompile(opts); err != nil {
		// Keep watching: a broken manifest mid-edit is the normal case here.
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(opts.ManifestPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.ManifestPath, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(
		fmt.Sprintf("Watching %s for changes (ctrl-c to stop)", console.ToRelativePath(opts.ManifestPath))))

	target := filepath.Base(opts.ManifestPath)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Stopped watching"))
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("manifest changed", map[string]any{"event": event.Op.String()})
			if err := RunCompile(opts); err != nil {
				fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", map[string]any{"error": err.Error()})
		}
	}
}
