package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cellgen/internal/codegen"
	"github.com/roach88/cellgen/internal/ir"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	genFlags
}

// InspectResult is the extracted view of a unit: schemas, planned
// identifiers and declarations.
type InspectResult struct {
	Package     string          `json:"package"`
	Output      string          `json:"output"`
	Fingerprint string          `json:"fingerprint"`
	Records     []InspectRecord `json:"records"`
	Decls       []codegen.Decl  `json:"decls"`
}

// InspectRecord pairs a schema with its planned identifiers.
type InspectRecord struct {
	Schema    *ir.RecordSchema  `json:"schema"`
	Singleton string            `json:"singleton,omitempty"`
	Selectors map[string]string `json:"selectors"` // field name -> token
	Accessors []string          `json:"accessors"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [inputs...]",
		Short: "Show extracted schemas and planned identifiers",
		Long: `Show what generate would produce without writing anything: the extracted
record schemas, each field's selector token and the generated accessors.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	addGenFlags(cmd, &opts.genFlags)
	return cmd
}

func runInspect(opts *InspectOptions, inputs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	res, err := build(opts.RootOptions, &opts.genFlags, inputs)
	if err != nil {
		return outputBuildErrors(formatter, err)
	}

	result := &InspectResult{
		Package:     res.Unit.Package,
		Output:      res.Output,
		Fingerprint: res.Unit.Fingerprint,
		Decls:       res.Unit.Decls,
	}
	for _, s := range res.Load.Schemas {
		tokens := res.Unit.Names(s.Name, codegen.KindSelector)
		selectors := make(map[string]string, len(s.Fields))
		for i, f := range s.Fields {
			selectors[f.Name] = tokens[i]
		}
		result.Records = append(result.Records, InspectRecord{
			Schema:    s,
			Singleton: res.Unit.Singleton(s.Name),
			Selectors: selectors,
			Accessors: res.Unit.Names(s.Name, codegen.KindAccessor),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writeInspectText(formatter, result)
	return nil
}

func writeInspectText(formatter *OutputFormatter, result *InspectResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "package %s -> %s\n", result.Package, result.Output)
	fmt.Fprintf(w, "fingerprint %s\n", result.Fingerprint)

	for _, r := range result.Records {
		s := r.Schema
		fmt.Fprintf(w, "\n%s (duplication: %s", s.Name, s.Duplication)
		if s.Init != "" {
			fmt.Fprintf(w, ", init: %s", s.Init)
		}
		fmt.Fprintln(w, ")")
		if s.Pos.IsValid() {
			fmt.Fprintf(w, "  declared at %s\n", s.Pos)
		}

		if len(s.Fields) > 0 {
			fmt.Fprintln(w, "  fields:")
			for _, f := range s.Fields {
				fmt.Fprintf(w, "    %-16s %-20s %-6s -> %s\n", f.Name, f.TypeName, f.Duplication, r.Selectors[f.Name])
			}
		}
		if s.FieldsOnly {
			fmt.Fprintln(w, "  fields only: no store")
			continue
		}
		fmt.Fprintf(w, "  singleton: %s\n", r.Singleton)
		fmt.Fprintf(w, "  accessors: %s\n", strings.Join(r.Accessors, ", "))
	}
}
