// Package manifest loads and validates the nopo.yml monorepo manifest. The
// manifest declares the deployable apps and bot automations the pipeline
// definitions are generated from.
package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kevin-mind/nopo/pkg/logger"
)

// DefaultPath is where the manifest lives relative to the repository root.
const DefaultPath = "nopo.yml"

// App kinds.
const (
	KindService  = "service"
	KindPackage  = "package"
	KindFunction = "function"
)

//go:embed schema.json
var schemaJSON []byte

// Manifest describes the monorepo: its apps and the bot automations to
// generate workflows for.
type Manifest struct {
	Version int    `yaml:"version"`
	Name    string `yaml:"name"`
	Apps    []*App `yaml:"apps"`
	Bots    Bots   `yaml:"bots"`
}

// App is one deployable unit of the monorepo.
type App struct {
	Name       string  `yaml:"name"`
	Path       string  `yaml:"path"`
	Kind       string  `yaml:"kind"`
	Dockerfile string  `yaml:"dockerfile,omitempty"`
	Test       string  `yaml:"test,omitempty"`
	Deploy     *Deploy `yaml:"deploy,omitempty"`
}

// Deploy configures where a deployable app ships to.
type Deploy struct {
	Environment string `yaml:"environment"`
	Service     string `yaml:"service"`
}

// Bots toggles the automation workflows.
type Bots struct {
	IssueTriage *BotConfig `yaml:"issue_triage,omitempty"`
	PRReview    *BotConfig `yaml:"pr_review,omitempty"`
	CIAutofix   *BotConfig `yaml:"ci_autofix,omitempty"`
}

// BotConfig configures a single bot workflow.
type BotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule,omitempty"`
}

// Load reads, schema-validates, and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	logger.Debug("loading manifest", map[string]any{"path": path})

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse schema-validates and decodes manifest content.
func Parse(data []byte) (*Manifest, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	logger.Debug("manifest loaded", map[string]any{"name": m.Name, "apps": len(m.Apps)})
	return &m, nil
}

// AppsOfKind returns the apps with the given kind, in manifest order.
func (m *Manifest) AppsOfKind(kind string) []*App {
	var apps []*App
	for _, app := range m.Apps {
		if app.Kind == kind {
			apps = append(apps, app)
		}
	}
	return apps
}

// DeployableApps returns the apps that declare a deploy target.
func (m *Manifest) DeployableApps() []*App {
	var apps []*App
	for _, app := range m.Apps {
		if app.Deploy != nil {
			apps = append(apps, app)
		}
	}
	return apps
}

// validate applies the cross-field rules the JSON schema cannot express.
func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Apps))
	for _, app := range m.Apps {
		if seen[app.Name] {
			return fmt.Errorf("manifest has duplicate app name %q", app.Name)
		}
		seen[app.Name] = true

		if app.Deploy != nil && app.Kind == KindService && app.Dockerfile == "" {
			return fmt.Errorf("app %q deploys as a service but has no dockerfile", app.Name)
		}
	}
	return nil
}

// validateSchema checks the raw manifest against the embedded JSON schema.
// YAML is converted through JSON so the validator sees the value shapes it
// expects.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert manifest to JSON: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(string(jsonBytes)))
	if err != nil {
		return fmt.Errorf("failed to decode manifest JSON: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	if err := schema.Validate(instance); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("manifest is invalid:\n%s", formatValidationError(ve))
		}
		return fmt.Errorf("manifest is invalid: %w", err)
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedded manifest schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("nopo.schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to register manifest schema: %w", err)
	}
	schema, err := compiler.Compile("nopo.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}
	return schema, nil
}

// formatValidationError flattens leaf validation causes into one line each,
// prefixed by the JSON path of the offending value.
func formatValidationError(ve *jsonschema.ValidationError) string {
	var lines []string
	var collect func(e *jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			lines = append(lines, "  "+e.Error())
			return
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(ve)
	return strings.Join(lines, "\n")
}
