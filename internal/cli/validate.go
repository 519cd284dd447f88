package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/disjunct/internal/compiler"
	"github.com/roach88/disjunct/internal/model"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Models []ModelSummary             `json:"models,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// ModelSummary describes one declared kind.
type ModelSummary struct {
	Kind   string     `json:"kind"`
	Unique [][]string `json:"unique,omitempty"`
	List   []string   `json:"list,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <models>",
		Short: "Validate model declarations",
		Long: `Validate the CUE model declarations in a file or directory.

Every kind under the top-level "models" struct is compiled and checked:
unique combinations must name distinct, non-empty columns, never __key__,
and no combination or list column may be declared twice.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadModels(path, LoadModeCollectAll)

	// Nothing loaded at all (path not found, no files, CUE errors)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Read %d CUE file(s) from %s", loadResult.FileCount, path)
	for _, m := range loadResult.Models {
		formatter.VerboseLog("Validated model: %s", m.Kind)
	}

	if len(loadErrors) > 0 {
		return outputValidationErrors(formatter, toValidationErrors(loadErrors))
	}

	return outputValidateSuccess(formatter, summarize(loadResult.Models))
}

// toValidationErrors flattens load and compile errors into one list.
func toValidationErrors(errs []error) []compiler.ValidationError {
	out := make([]compiler.ValidationError, 0, len(errs))
	for _, err := range errs {
		var verr compiler.ValidationError
		var loadErr *LoadError
		switch {
		case errors.As(err, &verr):
			out = append(out, verr)
		case errors.As(err, &loadErr):
			field := "load"
			if loadErr.Pos.IsValid() {
				field = fmt.Sprintf("%s:%d", loadErr.Pos.Filename(), loadErr.Pos.Line())
			}
			out = append(out, compiler.ValidationError{Field: field, Message: loadErr.Message, Code: loadErr.Code})
		default:
			out = append(out, compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric})
		}
	}
	return out
}

func summarize(models []*model.Model) []ModelSummary {
	out := make([]ModelSummary, len(models))
	for i, m := range models {
		out[i] = ModelSummary{Kind: m.Kind, Unique: m.UniqueTogether, List: m.ListColumns}
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, models []ModelSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Models: models})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d model(s) valid\n", len(models))
	for _, m := range models {
		var parts []string
		if len(m.Unique) > 0 {
			combos := make([]string, len(m.Unique))
			for i, c := range m.Unique {
				combos[i] = "(" + strings.Join(c, ", ") + ")"
			}
			parts = append(parts, "unique "+strings.Join(combos, " "))
		}
		if len(m.List) > 0 {
			parts = append(parts, "list ["+strings.Join(m.List, ", ")+"]")
		}
		if len(parts) == 0 {
			parts = append(parts, "no constraints")
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", m.Kind, strings.Join(parts, ", "))
	}
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Unloadable models are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		if err := encodeIndented(formatter.Writer, response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
