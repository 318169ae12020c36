// Package console formats user-facing terminal output: status messages with
// colored icons, compiler-style diagnostics with source context, and plain
// text tables. Log output for machines goes through pkg/logger instead.
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

// ErrorPosition identifies a location in a source file.
type ErrorPosition struct {
	File   string
	Line   int
	Column int
}

// CompilerError is a diagnostic tied to a position in a generated or source
// file, rendered in the familiar "file:line:col: type: message" shape.
type CompilerError struct {
	Position ErrorPosition
	Type     string // "error" or "warning"
	Message  string
	Context  []string // source lines surrounding the position
	Hint     string
}

// FormatError renders a CompilerError with a numbered context gutter.
func FormatError(err CompilerError) string {
	var sb strings.Builder

	pos := fmt.Sprintf("%s:%d:%d:", ToRelativePath(err.Position.File), err.Position.Line, err.Position.Column)
	sb.WriteString(boldColor.Sprint(pos))
	sb.WriteString(" ")

	switch err.Type {
	case "warning":
		sb.WriteString(warningColor.Sprint("warning:"))
	default:
		sb.WriteString(errorColor.Sprint("error:"))
	}
	sb.WriteString(" ")
	sb.WriteString(err.Message)
	sb.WriteString("\n")

	if len(err.Context) > 0 {
		// Context lines are centered on the error line, so the first line
		// number is offset backwards from the reported position.
		startLine := err.Position.Line - len(err.Context)/2
		if startLine < 1 {
			startLine = 1
		}
		width := len(fmt.Sprintf("%d", startLine+len(err.Context)-1))
		for i, line := range err.Context {
			gutter := fmt.Sprintf("%*d | ", width, startLine+i)
			sb.WriteString(dimColor.Sprint(gutter))
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// FormatErrorWithSuggestions renders an error message followed by a bulleted
// list of next steps.
func FormatErrorWithSuggestions(message string, suggestions []string) string {
	var sb strings.Builder
	sb.WriteString(FormatErrorMessage(message))
	sb.WriteString("\n")

	if len(suggestions) > 0 {
		sb.WriteString("Suggestions:\n")
		for _, s := range suggestions {
			sb.WriteString("  • ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// FormatSuccessMessage renders a success line with a green checkmark.
func FormatSuccessMessage(message string) string {
	return successColor.Sprint("✓") + " " + message
}

// FormatInfoMessage renders an informational line with a cyan icon.
func FormatInfoMessage(message string) string {
	return infoColor.Sprint("ℹ") + " " + message
}

// FormatWarningMessage renders a warning line with a yellow icon.
func FormatWarningMessage(message string) string {
	return warningColor.Sprint("⚠") + " " + message
}

// FormatErrorMessage renders an error line with a red cross.
func FormatErrorMessage(message string) string {
	return errorColor.Sprint("✗") + " " + message
}

// FormatLocationMessage renders a filesystem location line.
func FormatLocationMessage(message string) string {
	return "📁 " + message
}

// ToRelativePath converts an absolute path to one relative to the current
// working directory when that makes it shorter to read. Relative paths pass
// through unchanged.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil {
		return path
	}
	return rel
}

// TableConfig describes a plain text table.
type TableConfig struct {
	Title     string
	Headers   []string
	Rows      [][]string
	ShowTotal bool
	TotalRow  []string
}

// RenderTable renders the table with aligned columns. An empty config
// renders as an empty string.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 && len(config.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(config.Headers))
	for i, h := range config.Headers {
		widths[i] = len(h)
	}
	measure := func(row []string) {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	for _, row := range config.Rows {
		measure(row)
	}
	if config.ShowTotal {
		measure(config.TotalRow)
	}

	renderRow := func(row []string) string {
		cells := make([]string, 0, len(row))
		for i, cell := range row {
			w := len(cell)
			if i < len(widths) {
				w = widths[i]
			}
			cells = append(cells, fmt.Sprintf("%-*s", w, cell))
		}
		return strings.TrimRight(strings.Join(cells, "  "), " ")
	}

	var sb strings.Builder
	if config.Title != "" {
		sb.WriteString(boldColor.Sprint(config.Title))
		sb.WriteString("\n")
	}

	sb.WriteString(renderRow(config.Headers))
	sb.WriteString("\n")

	total := 0
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(strings.Repeat("─", max(total-2, 1)))
	sb.WriteString("\n")

	for _, row := range config.Rows {
		sb.WriteString(renderRow(row))
		sb.WriteString("\n")
	}

	if config.ShowTotal && len(config.TotalRow) > 0 {
		sb.WriteString(strings.Repeat("─", max(total-2, 1)))
		sb.WriteString("\n")
		sb.WriteString(renderRow(config.TotalRow))
		sb.WriteString("\n")
	}

	return sb.String()
}
