package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcgraph/internal/ir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// FileValidation is the outcome for one file.
type FileValidation struct {
	Path    string `json:"path"`
	Name    string `json:"name,omitempty"`
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidateResult holds the outcome for every file.
type ValidateResult struct {
	Files   []FileValidation `json:"files"`
	Valid   int              `json:"valid"`
	Invalid int              `json:"invalid"`
}

func (r ValidateResult) writeText(w io.Writer) {
	for _, f := range r.Files {
		if f.Valid {
			fmt.Fprintf(w, "✓ %s (%s)\n", f.Path, f.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s [%s]: %s\n", f.Path, f.Code, f.Message)
	}
	fmt.Fprintf(w, "\n%d valid, %d invalid\n", r.Valid, r.Invalid)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Load and validate definitions",
		Long: `Load every file, build its context and run the structural and type
checks, without evaluating anything.

Exit codes:
  0 - All files are valid
  1 - One or more files are invalid
  2 - Command error

Examples:
  mpcgraph validate millionaires.cue
  mpcgraph validate defs/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, paths []string) error {
	e, ctx, err := newEnv(cmd, opts.RootOptions, nil)
	if err != nil {
		return err
	}

	result := ValidateResult{Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		fv := FileValidation{Path: path}
		src, err := e.load(ctx, path)
		if err != nil {
			fv.Code = string(ir.CodeOf(err))
			fv.Message = err.Error()
			result.Invalid++
		} else {
			fv.Name = src.Name
			fv.Valid = true
			result.Valid++
		}
		result.Files = append(result.Files, fv)
	}

	if err := e.out.Success(result); err != nil {
		return err
	}
	if result.Invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d file(s) invalid", result.Invalid, len(paths)))
	}
	return nil
}
