// Package cli implements the nopo-ci command line interface: compiling the
// declarative pipeline definitions to .github/workflows, listing them, and
// validating the results.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kevin-mind/nopo/pkg/envutil"
	"github.com/kevin-mind/nopo/pkg/logger"
	"github.com/kevin-mind/nopo/pkg/manifest"
)

// NewRootCommand creates the nopo-ci root command.
func NewRootCommand(version string) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:     "nopo-ci",
		Short:   "Generate the nopo monorepo's GitHub Actions workflows",
		Version: version,
		Long: `nopo-ci compiles the pipeline definitions under pkg/pipelines into
GitHub Actions workflow files. The definitions are parameterized by the
nopo.yml manifest, which declares the monorepo's apps and bot automations.

Compiled files are generated artifacts: edit the definitions and recompile
instead of editing the YAML.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A .env file is optional local convenience, never required.
			if err := godotenv.Load(); err == nil {
				logger.Debug("loaded .env file")
			}

			color.NoColor = envutil.GetBoolFromEnv("NOPO_NO_COLOR", color.NoColor)

			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLogLevel(level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"minimum log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("manifest", "",
		fmt.Sprintf("path to the manifest (default: %s at the repository root)", manifest.DefaultPath))
	cmd.PersistentFlags().String("output", "",
		"directory for compiled workflows (default: .github/workflows at the repository root)")

	cmd.AddCommand(NewCompileCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
