package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kevin-mind/nopo/pkg/gitutil"
	"github.com/kevin-mind/nopo/pkg/manifest"
)

// resolvePaths turns the --manifest and --output flags into concrete paths,
// defaulting both relative to the repository root so the command works from
// any subdirectory of the checkout.
func resolvePaths(cmd *cobra.Command) (manifestPath, outputDir string, err error) {
	manifestPath, _ = cmd.Flags().GetString("manifest")
	outputDir, _ = cmd.Flags().GetString("output")

	if manifestPath != "" && outputDir != "" {
		return manifestPath, outputDir, nil
	}

	root, err := gitutil.FindRepoRoot("")
	if err != nil {
		return "", "", fmt.Errorf("cannot locate the repository root (pass --manifest and --output explicitly): %w", err)
	}

	if manifestPath == "" {
		manifestPath = filepath.Join(root, manifest.DefaultPath)
	}
	if outputDir == "" {
		outputDir = filepath.Join(root, ".github", "workflows")
	}
	return manifestPath, outputDir, nil
}

// workflowFilePath is where a compiled definition lands on disk.
func workflowFilePath(outputDir, name string) string {
	return filepath.Join(outputDir, name+".yml")
}
