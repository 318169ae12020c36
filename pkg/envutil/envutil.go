// Package envutil provides helpers for reading and validating environment
// variables used as configuration knobs.
package envutil

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kevin-mind/nopo/pkg/console"
	"github.com/kevin-mind/nopo/pkg/logger"
)

// GetIntFromEnv reads an integer from an environment variable, validates it
// against inclusive min/max bounds, and falls back to the default when the
// variable is unset, unparsable, or out of range. Invalid values trigger a
// warning on stderr rather than an error: a bad knob should never stop a
// compile.
func GetIntFromEnv(envVar string, defaultValue, minValue, maxValue int) int {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(envValue)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("Invalid %s value '%s' (must be a number), using default %d", envVar, envValue, defaultValue),
		))
		return defaultValue
	}

	if val < minValue || val > maxValue {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("%s value %d is out of bounds (must be %d-%d), using default %d", envVar, val, minValue, maxValue, defaultValue),
		))
		return defaultValue
	}

	logger.Debug("using environment override", map[string]any{"var": envVar, "value": val})
	return val
}

// GetBoolFromEnv reads a boolean from an environment variable, falling back
// to the default when unset or unparsable. Accepts the strconv.ParseBool
// forms (1/0, t/f, true/false).
func GetBoolFromEnv(envVar string, defaultValue bool) bool {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return defaultValue
	}

	val, err := strconv.ParseBool(envValue)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("Invalid %s value '%s' (must be a boolean), using default %t", envVar, envValue, defaultValue),
		))
		return defaultValue
	}

	logger.Debug("using environment override", map[string]any{"var": envVar, "value": val})
	return val
}
