package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/roach88/arcplan/internal/config"
	"github.com/roach88/arcplan/internal/dataset"
	"github.com/roach88/arcplan/internal/solver"
	"github.com/roach88/arcplan/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The run failed or the requested record reports failure
	ExitCommandError = 2 // Command error (bad flags, invalid config, store unavailable)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err for the JSON error envelope.
func ErrorCode(err error) string {
	switch {
	case config.IsConfigError(err):
		return "CONFIG"
	case dataset.IsDataError(err):
		return "DATA"
	case solver.IsSolverError(err):
		return "SOLVER"
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs data in the configured format. In text mode text renders
// it; a nil text prints data with fmt.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	if text == nil {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	text(f.Writer)
	return nil
}

// Error outputs err in the configured format.
func (f *OutputFormatter) Error(err error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: ErrorCode(err), Message: err.Error()},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %v\n", ErrorCode(err), err)
	return nil
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

// statusText colors a run status for terminals.
func statusText(s store.Status) string {
	switch s {
	case store.StatusCompleted:
		return goodColor.Sprint(s)
	case store.StatusFailed:
		return badColor.Sprint(s)
	case store.StatusStarted:
		return warnColor.Sprint(s)
	default:
		return string(s)
	}
}
