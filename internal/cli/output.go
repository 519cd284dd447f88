package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/disjunct/internal/engine"
	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/normalize"
	"github.com/roach88/disjunct/internal/unique"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected request or failed check (integrity violation, failing scenario, invalid models)
	ExitCommandError = 2 // Command error (bad paths, malformed query or record files)
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
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

// GetExitCode extracts the exit code from an error: ExitSuccess for nil,
// ExitFailure for errors that carry no code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope every command writes in json format.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload, or per-error detail
	Error  *CLIError `json:"error,omitempty"` // first error
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E203", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // IntegrityDetails, BranchDetails or ExecutionDetails
}

// IntegrityDetails describes a rejected write.
type IntegrityDetails struct {
	Kind     string   `json:"kind"`
	Columns  []string `json:"columns"`
	Values   []string `json:"values"`
	Marker   string   `json:"marker"`
	Existing string   `json:"existing,omitempty"` // empty when the batch collides with itself
}

// BranchDetails describes a filter over the branch cap.
type BranchDetails struct {
	Branches int `json:"branches"`
	Max      int `json:"max"`
}

// ExecutionDetails describes a failed store read.
type ExecutionDetails struct {
	Code   string `json:"code"`
	Branch int    `json:"branch"`
}

// classifyError maps a query or write failure to its error code, exit code
// and structured details. Malformed input is a command error; a well-formed
// request the engine rejects is a failure.
func classifyError(err error) (code string, exit int, details any) {
	var (
		loadErr *LoadError
		intErr  *unique.IntegrityError
		tmbErr  *normalize.TooManyBranchesError
		execErr *engine.ExecutionError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code, ExitCommandError, nil
	case errors.Is(err, normalize.ErrInvalidFilter):
		return ErrCodeInvalidQuery, ExitCommandError, nil
	case errors.As(err, &tmbErr):
		return ErrCodeTooManyBranches, ExitFailure, BranchDetails{Branches: tmbErr.Branches, Max: tmbErr.Max}
	case errors.As(err, &intErr):
		d := IntegrityDetails{Kind: intErr.Kind, Columns: intErr.Columns, Marker: intErr.Marker}
		for _, v := range intErr.Values {
			d.Values = append(d.Values, ir.Format(v))
		}
		if intErr.Existing != nil {
			d.Existing = intErr.Existing.String()
		}
		return ErrCodeIntegrity, ExitFailure, d
	case errors.As(err, &execErr):
		return ErrCodeExecution, ExitFailure, ExecutionDetails{Code: string(execErr.Code), Branch: execErr.Branch}
	default:
		return ErrCodeGeneric, ExitCommandError, nil
	}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %+v\n", details)
	}
	return nil
}

// Failure reports err with its code and details and returns the matching
// ExitError.
func (f *OutputFormatter) Failure(err error) error {
	code, exit, details := classifyError(err)
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		message = loadErr.Message
	}
	_ = f.Error(code, message, details)
	return WrapExitError(exit, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// encodeIndented writes v as indented JSON.
func encodeIndented(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
