package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/roach88/cellgen/internal/codegen"
	"github.com/roach88/cellgen/internal/config"
	"github.com/roach88/cellgen/internal/ir"
)

// genFlags are the input flags shared by generate, inspect and check.
type genFlags struct {
	Types            []string
	Output           string
	RuntimeImport    string
	InferValueFields bool
	SelectorsOnly    bool
}

// buildResult is one resolved generation: config, inputs and rendered unit.
type buildResult struct {
	Config *config.Config
	Load   *LoadResult
	Unit   *codegen.Unit
	Output string // path the unit is written to
}

// build runs the whole pipeline short of writing: expand inputs, resolve the
// config, extract schemas and render. Flags override the config file.
func build(opts *RootOptions, flags *genFlags, inputs []string) (*buildResult, error) {
	if len(inputs) == 0 {
		inputs = []string{"."}
	}
	paths, err := ExpandInputs(inputs)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(opts.Config, ConfigDir(paths))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: "loading config", Err: err}
	}
	if cfg.Path != "" {
		slog.Debug("using config", "path", cfg.Path)
	}

	types := flags.Types
	if len(types) == 0 {
		types = cfg.Types
	}
	load, err := LoadInputs(paths, LoadOptions{
		Types:            types,
		InferValueFields: flags.InferValueFields || cfg.InferValueFields,
	})
	if err != nil {
		return nil, err
	}
	for _, s := range load.Schemas {
		if flags.SelectorsOnly {
			s.FieldsOnly = true
			s.Init = ""
		}
		slog.Debug("extracted record", "record", s.Name, "fields", len(s.Fields), "duplication", s.Duplication.String())
	}

	runtime := flags.RuntimeImport
	if runtime == "" {
		runtime = cfg.RuntimeImport
	}
	unit, err := codegen.Generate(load.Schemas, codegen.Options{
		Package:       load.Package,
		RuntimeImport: runtime,
		Reserved:      load.Reserved,
	})
	if err != nil {
		return nil, err
	}

	return &buildResult{
		Config: cfg,
		Load:   load,
		Unit:   unit,
		Output: outputPath(flags.Output, cfg, load),
	}, nil
}

// outputPath picks the generated file path: the flag as given, else the
// config value relative to the package directory, else <package>_cell.go.
func outputPath(flag string, cfg *config.Config, load *LoadResult) string {
	if flag != "" {
		return flag
	}
	if cfg.Output != "" {
		if filepath.IsAbs(cfg.Output) {
			return cfg.Output
		}
		return filepath.Join(load.Dir, cfg.Output)
	}
	return filepath.Join(load.Dir, load.Package+"_cell.go")
}

// toCLIErrors flattens any pipeline error into CLI errors, one per schema
// problem.
func toCLIErrors(err error) []CLIError {
	if list := ir.AsSchemaErrors(err); list != nil {
		out := make([]CLIError, len(list))
		for i, e := range list {
			out[i] = schemaCLIError(e)
		}
		return out
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		msg := loadErr.Message
		if loadErr.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, loadErr.Err)
		}
		return []CLIError{{Code: loadErr.Code, Message: msg}}
	}
	return []CLIError{{Code: ErrCodeGeneric, Message: err.Error()}}
}

func schemaCLIError(e *ir.SchemaError) CLIError {
	subject := e.Record
	if e.Field != "" {
		subject += "." + e.Field
	}
	msg := e.Message
	if subject != "" {
		msg = subject + ": " + msg
	}
	if e.Pos.IsValid() {
		msg = e.Pos.String() + ": " + msg
	}

	details := map[string]any{}
	if e.Record != "" {
		details["record"] = e.Record
	}
	if e.Field != "" {
		details["field"] = e.Field
	}
	if e.Pos.Filename != "" {
		details["file"] = e.Pos.Filename
	}
	if e.Pos.Line > 0 {
		details["line"] = e.Pos.Line
	}
	if len(details) == 0 {
		return CLIError{Code: e.Code, Message: msg}
	}
	return CLIError{Code: e.Code, Message: msg, Details: details}
}

// outputBuildErrors reports pipeline errors and returns the ExitError the
// command should fail with.
func outputBuildErrors(formatter *OutputFormatter, err error) error {
	cliErrs := toCLIErrors(err)
	if outErr := formatter.Errors(cliErrs); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", cliErrs[0].Code, cliErrs[0].Message), nil)
}
