package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifegraph/lifegraph/internal/engine"
	"github.com/lifegraph/lifegraph/internal/loader"
)

// ValidationIssue is one problem found in one module.
type ValidationIssue struct {
	Module  string `json:"module"`
	Message string `json:"message"`
}

// ValidationResult holds validation results for a module directory.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Modules int               `json:"modules"`
	Issues  []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <module-dir>",
		Short: "Validate modules without running them",
		Long: `Validate every module in a directory without generating anything.

Checks parseability, state types, transition shapes, weight sums, dangling
transition targets, and that each module has exactly one Initial state.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, moduleDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	lib, result := ValidateModuleDir(moduleDir, formatter)
	if lib == nil {
		_ = formatter.Error(result.Issues[0].Message, nil)
		return NewExitError(ExitCommandError, result.Issues[0].Message)
	}

	if len(result.Issues) > 0 {
		return outputValidationIssues(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateModuleDir loads and validates every module under dir. A nil
// library means the directory itself could not be loaded; the result then
// carries the load failure as its only issue.
func ValidateModuleDir(dir string, formatter *OutputFormatter) (*loader.Library, ValidationResult) {
	lib, loadErrs := loader.LoadDirectory(dir)
	if lib == nil {
		return nil, ValidationResult{Issues: []ValidationIssue{{Message: loadErrs[0].Error()}}}
	}

	result := ValidationResult{Modules: lib.Len()}
	for _, err := range loadErrs {
		result.Issues = append(result.Issues, ValidationIssue{Message: err.Error()})
	}

	for _, name := range lib.Names() {
		formatter.VerboseLog("Validating module: %s", name)
		supplier, _ := lib.Get(name)
		def, err := supplier.Definition()
		if err != nil {
			result.Issues = append(result.Issues, ValidationIssue{Module: name, Message: err.Error()})
			continue
		}
		for _, violation := range engine.ValidateDefinition(def) {
			result.Issues = append(result.Issues, ValidationIssue{Module: name, Message: violation})
		}
	}

	result.Valid = len(result.Issues) == 0
	return lib, result
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d module(s) valid\n", result.Modules)
	return nil
}

func outputValidationIssues(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Message: result.Issues[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Issues {
		if issue.Module != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Module, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n", issue.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))
}
