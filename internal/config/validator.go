package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError is one invalid configuration value.
type ValidationError struct {
	Field   string // Key path, e.g. "stress.workers"
	Value   any    // The rejected value
	Message string // What a valid value looks like
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors reports every invalid value at once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err)
	}
	return sb.String()
}

// Upper bounds for the stress harness. Larger runs are possible from code
// but are almost always a typo on the command line.
const (
	maxStressWorkers    = 1024
	maxStressIterations = 10_000_000
	maxLogSizeMB        = 1024
)

// ValidLogLevels returns the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidColorModes returns the accepted output.color values.
func ValidColorModes() []string {
	return []string{"auto", "always", "never"}
}

// ValidOutputFormats returns the accepted output.format values.
func ValidOutputFormats() []string {
	return []string{"text", "json"}
}

// validator accumulates failures so that Validate reports all of them.
type validator []ValidationError

func (v *validator) fail(field string, value any, format string, args ...any) {
	*v = append(*v, ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

// oneOf accepts the empty string, which means "use the default".
func (v *validator) oneOf(field, value string, allowed []string) {
	if value != "" && !slices.Contains(allowed, strings.ToLower(value)) {
		v.fail(field, value, "must be one of: %s", strings.Join(allowed, ", "))
	}
}

func (v *validator) between(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.fail(field, value, "must be between %d and %d", lo, hi)
	}
}

func (v *validator) nonNegative(field string, value int, note string) {
	if value < 0 {
		v.fail(field, value, "must be non-negative%s", note)
	}
}

// Validate returns every invalid value in c, or nil.
func (c *Config) Validate() []ValidationError {
	var v validator

	v.oneOf("logging.level", c.Logging.Level, ValidLogLevels())
	v.between("logging.max_size_mb", c.Logging.MaxSizeMB, 0, maxLogSizeMB)
	v.nonNegative("logging.max_backups", c.Logging.MaxBackups, "")

	v.between("stress.workers", c.Stress.Workers, 1, maxStressWorkers)
	v.between("stress.iterations", c.Stress.Iterations, 1, maxStressIterations)
	v.nonNegative("stress.timeout_seconds", c.Stress.TimeoutSeconds, " (0 disables the timeout)")

	v.nonNegative("scenario.watch_debounce_ms", c.Scenario.WatchDebounceMs, "")

	// Color and format are matched case-sensitively: they are compared
	// verbatim by the command.
	if c.Output.Color != "" && !slices.Contains(ValidColorModes(), c.Output.Color) {
		v.fail("output.color", c.Output.Color, "must be one of: %s", strings.Join(ValidColorModes(), ", "))
	}
	if c.Output.Format != "" && !slices.Contains(ValidOutputFormats(), c.Output.Format) {
		v.fail("output.format", c.Output.Format, "must be one of: %s", strings.Join(ValidOutputFormats(), ", "))
	}

	return v
}
