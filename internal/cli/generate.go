package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/cellgen/internal/codegen"
	"github.com/roach88/cellgen/internal/config"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	genFlags
	Watch  bool
	Stdout bool
}

// GenerateResult summarizes one generated file.
type GenerateResult struct {
	Output      string          `json:"output,omitempty"`
	Package     string          `json:"package"`
	Fingerprint string          `json:"fingerprint"`
	Unchanged   bool            `json:"unchanged,omitempty"`
	Records     []RecordSummary `json:"records"`
}

// RecordSummary lists the declarations generated for one record.
type RecordSummary struct {
	Name      string   `json:"name"`
	Singleton string   `json:"singleton,omitempty"`
	Selectors []string `json:"selectors"`
	Accessors []string `json:"accessors"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [inputs...]",
		Short: "Generate the store file for a package",
		Long: `Generate the singleton store, selector tokens and accessors for every
record in the inputs.

Inputs are Go package directories, .go files or .cue schema files and may be
glob patterns ("schemas/**/*.cue"). Without inputs the current directory is
used. Go struct types are selected with a //cell:store directive or --type.
Types marked //cell:fields, and every type under --selectors-only, get
selector tokens without a store.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, args, cmd)
		},
	}

	addGenFlags(cmd, &opts.genFlags)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "generated file path (default: <package>_cell.go next to the inputs)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "regenerate whenever an input changes")
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false, "print the generated source instead of writing it")

	return cmd
}

// addGenFlags registers the input flags shared by generate, inspect and check.
func addGenFlags(cmd *cobra.Command, flags *genFlags) {
	cmd.Flags().StringArrayVarP(&flags.Types, "type", "t", nil, "record type to generate (repeatable, default: all marked types)")
	cmd.Flags().StringVar(&flags.RuntimeImport, "runtime", "", "import path of the cell runtime package")
	cmd.Flags().BoolVar(&flags.InferValueFields, "infer-value-fields", false, "treat untagged scalar fields as value-duplicable")
	cmd.Flags().BoolVar(&flags.SelectorsOnly, "selectors-only", false, "generate selector tokens only, without stores or accessors")
}

func runGenerate(ctx context.Context, opts *GenerateOptions, inputs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Stdout && opts.Watch {
		return outputGenerateError(formatter, ErrCodeGeneric, "--stdout cannot be combined with --watch")
	}

	if !opts.Watch {
		res, err := build(opts.RootOptions, &opts.genFlags, inputs)
		if err != nil {
			return outputBuildErrors(formatter, err)
		}
		if opts.Stdout {
			_, err := cmd.OutOrStdout().Write(res.Unit.Source)
			return err
		}
		return writeAndReport(formatter, res)
	}

	// Watch mode: generate once, then again on every debounced change.
	// Failures are reported and the watch continues.
	var last *buildResult
	regenerate := func(context.Context) error {
		res, err := build(opts.RootOptions, &opts.genFlags, inputs)
		if err != nil {
			_ = outputBuildErrors(formatter, err)
			return err
		}
		last = res
		return writeAndReport(formatter, res)
	}

	if err := regenerate(ctx); err != nil && last == nil {
		// Without one successful run there is nothing to watch.
		return WrapExitError(ExitCommandError, "initial generation failed", err)
	}

	w := &Watcher{
		Dirs:     last.Load.Dirs(),
		Debounce: last.Config.WatchDebounce,
		Ignore:   ignoreOutput(last.Output),
		OnChange: regenerate,
	}
	if w.Debounce <= 0 {
		w.Debounce = config.DefaultWatchDebounce
	}
	slog.Info("watching for changes", "dirs", w.Dirs, "debounce", w.Debounce)
	if err := w.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

// writeAndReport writes the unit unless the file already holds the same
// bytes, then reports the result.
func writeAndReport(formatter *OutputFormatter, res *buildResult) error {
	unchanged, err := writeUnit(res.Output, res.Unit.Source)
	if err != nil {
		return outputGenerateError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", res.Output, err))
	}
	if unchanged {
		slog.Debug("generated file unchanged", "path", res.Output)
	} else {
		slog.Info("wrote generated file", "path", res.Output, "fingerprint", res.Unit.Fingerprint)
	}
	return outputGenerateSuccess(formatter, summarize(res.Unit, res.Output, unchanged))
}

// writeUnit writes src to path. It reports unchanged, and does not touch the
// file, when path already holds src.
func writeUnit(path string, src []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, src) {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	return false, os.WriteFile(path, src, 0o644)
}

func summarize(unit *codegen.Unit, output string, unchanged bool) *GenerateResult {
	res := &GenerateResult{
		Output:      output,
		Package:     unit.Package,
		Fingerprint: unit.Fingerprint,
		Unchanged:   unchanged,
	}
	for _, name := range unit.Records {
		res.Records = append(res.Records, RecordSummary{
			Name:      name,
			Singleton: unit.Singleton(name),
			Selectors: unit.Names(name, codegen.KindSelector),
			Accessors: unit.Names(name, codegen.KindAccessor),
		})
	}
	return res
}

// outputGenerateSuccess outputs a generation summary.
func outputGenerateSuccess(formatter *OutputFormatter, res *GenerateResult) error {
	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	verb := "Generated"
	if res.Unchanged {
		verb = "Up to date"
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %s (package %s)\n", verb, res.Output, res.Package)
	for _, r := range res.Records {
		fmt.Fprintf(formatter.Writer, "  %s: %d selector(s), %d accessor(s)\n", r.Name, len(r.Selectors), len(r.Accessors))
	}
	formatter.VerboseLog("fingerprint %s", res.Fingerprint)
	return nil
}

// outputGenerateError outputs a single command error.
func outputGenerateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

func ignoreOutput(output string) func(string) bool {
	abs, err := filepath.Abs(output)
	if err != nil {
		abs = output
	}
	return func(path string) bool {
		p, err := filepath.Abs(path)
		if err != nil {
			p = path
		}
		return p == abs
	}
}
