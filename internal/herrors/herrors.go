// Package herrors implements the structured error taxonomy of the
// execution core: every surfaceable error carries a message, a cause, and
// a fix, plus a Kind used for exit-code mapping and programmatic checks.
package herrors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Kind classifies an error for surfacing policy and exit-code mapping.
type Kind string

const (
	KindConfigInvalid          Kind = "ConfigInvalid"
	KindProviderNoApiKey       Kind = "ProviderNoApiKey"
	KindProviderTransient      Kind = "ProviderTransient"
	KindProviderSchemaError    Kind = "ProviderSchemaError"
	KindOrchestratorCycle      Kind = "OrchestratorCycle"
	KindOrchestratorMissingDep Kind = "OrchestratorMissingDep"
	KindRoundDegraded          Kind = "RoundDegraded"
	KindCacheCorrupt           Kind = "CacheCorrupt"
	KindFileReadFailure        Kind = "FileReadFailure"
	KindEmptyRepo              Kind = "EmptyRepo"
	KindRateLimited            Kind = "RateLimited"
	KindInternal               Kind = "Internal"
)

// exitCodes maps each Kind to a process exit code. Kinds that are never
// fatal (RoundDegraded, CacheCorrupt, FileReadFailure, EmptyRepo) still get
// a code here for completeness; ExitCode reads it for FatalError and ToJSON.
var exitCodes = map[Kind]int{
	KindConfigInvalid:          1,
	KindProviderNoApiKey:       1,
	KindProviderTransient:      1,
	KindProviderSchemaError:    1,
	KindOrchestratorCycle:      1,
	KindOrchestratorMissingDep: 1,
	KindRoundDegraded:          0,
	KindCacheCorrupt:           0,
	KindFileReadFailure:        0,
	KindEmptyRepo:              0,
	KindRateLimited:            1,
	KindInternal:               1,
}

// HandoverError is a structured error with cause/reason/fix fields, per
// a Kind used for exit-code mapping and programmatic checks.
type HandoverError struct {
	Kind    Kind
	Message string
	Cause   string
	Fix     string
	Err     error
}

func (e *HandoverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap enables errors.Is/errors.As across the wrapped cause.
func (e *HandoverError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code associated with this error's Kind.
func (e *HandoverError) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return 1
}

// New builds a HandoverError of the given kind.
func New(kind Kind, message, cause, fix string, err error) *HandoverError {
	return &HandoverError{Kind: kind, Message: message, Cause: cause, Fix: fix, Err: err}
}

// Convenience constructors, one per Kind.

func ConfigInvalid(message, cause, fix string, err error) *HandoverError {
	return New(KindConfigInvalid, message, cause, fix, err)
}

func ProviderNoApiKey(message, cause, fix string) *HandoverError {
	return New(KindProviderNoApiKey, message, cause, fix, nil)
}

func ProviderTransient(message, cause, fix string, err error) *HandoverError {
	return New(KindProviderTransient, message, cause, fix, err)
}

func ProviderSchemaError(message, cause, fix string, err error) *HandoverError {
	return New(KindProviderSchemaError, message, cause, fix, err)
}

func OrchestratorCycle(participants []string) *HandoverError {
	return New(KindOrchestratorCycle,
		"dependency graph contains a cycle",
		fmt.Sprintf("cycle participants: %s", strings.Join(participants, ", ")),
		"break the cycle by removing or reordering one of the listed step dependencies",
		nil)
}

func OrchestratorMissingDep(stepID, missingDep string) *HandoverError {
	return New(KindOrchestratorMissingDep,
		fmt.Sprintf("step %q depends on unregistered step %q", stepID, missingDep),
		"AddStep was never called for the missing dependency",
		"register the missing step before calling Execute",
		nil)
}

func CacheCorrupt(path string, err error) *HandoverError {
	return New(KindCacheCorrupt,
		fmt.Sprintf("cache entry %s is unreadable", path),
		"the file may be truncated, from an incompatible version, or corrupted on disk",
		"treated as a cache miss; the round will re-run",
		err)
}

func FileReadFailure(path string, err error) *HandoverError {
	return New(KindFileReadFailure,
		fmt.Sprintf("could not read %s", path),
		"the file may have been deleted or become unreadable after enumeration",
		"the file falls back to an empty content hash and packing continues",
		err)
}

func EmptyRepo() *HandoverError {
	return New(KindEmptyRepo,
		"no source files found in the repository",
		"static analysis saw zero source files after filtering",
		"verify the include/exclude globs, or point at a different root directory",
		nil)
}

func RateLimited(attempts int, err error) *HandoverError {
	return New(KindRateLimited,
		fmt.Sprintf("provider call failed after %d attempts", attempts),
		"the provider kept returning retryable (429/529-class) errors",
		"wait and retry later, or lower analysis.concurrency",
		err)
}

// Colors used by Format: red error, yellow cause, green fix.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for terminal display, with colored sections for
// Error/Cause/Fix. Color is disabled when noColor is true or NO_COLOR is set.
func (e *HandoverError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// JSON is the machine-readable projection of a HandoverError.
type JSON struct {
	Kind    Kind   `json:"kind"`
	Error   string `json:"error"`
	Cause   string `json:"cause,omitempty"`
	Fix     string `json:"fix,omitempty"`
	ExitVal int    `json:"exit_code"`
}

// ToJSON converts the error to its JSON-serializable form.
func (e *HandoverError) ToJSON() JSON {
	return JSON{
		Kind:    e.Kind,
		Error:   e.Message,
		Cause:   e.Cause,
		Fix:     e.Fix,
		ExitVal: e.ExitCode(),
	}
}

// FatalError prints err (as colored text or JSON) and exits the process.
// Non-HandoverError values are printed plainly and exit with code 1.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if he, ok := err.(*HandoverError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(he.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, he.Format(false))
		}
		os.Exit(he.ExitCode())
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
