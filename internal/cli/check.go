package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cellgen/internal/codegen"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	genFlags
}

// Check statuses.
const (
	CheckUpToDate = "up-to-date"
	CheckMissing  = "missing"
	CheckStale    = "stale"    // fingerprint differs from the current schemas
	CheckModified = "modified" // fingerprint matches but the file was edited
)

// CheckResult reports whether a generated file matches its inputs.
type CheckResult struct {
	Output   string `json:"output"`
	Status   string `json:"status"`
	Expected string `json:"expected_fingerprint"`
	Actual   string `json:"actual_fingerprint,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [inputs...]",
		Short: "Verify the generated file is up to date",
		Long: `Regenerate in memory and compare with the file on disk.

Exits 1 when the file is missing, when its fingerprint differs from the
current schemas, or when it was edited by hand. Suitable for CI.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	addGenFlags(cmd, &opts.genFlags)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "generated file path (default: <package>_cell.go next to the inputs)")
	return cmd
}

func runCheck(opts *CheckOptions, inputs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	res, err := build(opts.RootOptions, &opts.genFlags, inputs)
	if err != nil {
		return outputBuildErrors(formatter, err)
	}

	result := &CheckResult{Output: res.Output, Expected: res.Unit.Fingerprint}
	existing, err := os.ReadFile(res.Output)
	switch {
	case errors.Is(err, os.ErrNotExist):
		result.Status = CheckMissing
	case err != nil:
		return outputGenerateError(formatter, ErrCodeLoadFailed, fmt.Sprintf("reading %s: %v", res.Output, err))
	default:
		result.Actual, _ = codegen.ReadFingerprint(existing)
		switch {
		case result.Actual != result.Expected:
			result.Status = CheckStale
		case !bytes.Equal(existing, res.Unit.Source):
			result.Status = CheckModified
		default:
			result.Status = CheckUpToDate
		}
	}

	if result.Status == CheckUpToDate {
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ %s is up to date\n", result.Output)
		return nil
	}

	message := fmt.Sprintf("%s is %s, run cellgen generate", result.Output, result.Status)
	_ = formatter.Error(ErrCodeStale, message, result)
	return NewExitError(ExitFailure, message)
}
