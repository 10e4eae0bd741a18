package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/cellgen/internal/compiler"
	"github.com/roach88/cellgen/internal/ir"
)

// Error code constants - unified across all CLI commands. Schema problems
// carry their own E2xx codes from package ir.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Input expansion or unsupported input
	ErrCodeNoFiles     = "E003" // No inputs or no records found
	ErrCodeLoadFailed  = "E004" // Input could not be read
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeConfig      = "E006" // Config file error
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStale       = "E008" // Generated file out of date
)

// LoadError represents an error that occurred while resolving inputs.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadOptions controls schema extraction.
type LoadOptions struct {
	// Types restricts loading to the named records. Empty means every record
	// carrying the store directive plus every CUE record.
	Types            []string
	InferValueFields bool
}

// LoadResult is everything a generation run needs from its inputs.
type LoadResult struct {
	Package  string
	Dir      string // directory the generated file belongs in
	Schemas  []*ir.RecordSchema
	Reserved map[string]bool // identifiers the user's package declares
	Files    []string        // every source file read
}

// Dirs returns the distinct directories of the loaded files.
func (r *LoadResult) Dirs() []string {
	var dirs []string
	for _, f := range r.Files {
		d := filepath.Dir(f)
		if !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// ExpandInputs expands glob patterns and returns the matched paths sorted and
// deduplicated. Patterns with ** use doublestar; a pattern that matches
// nothing and names no existing path is an error.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := expandGlob(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("bad input pattern %q", p), Err: err}
		}
		if len(matches) == 0 {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("input not found: %s", p)}
		}
		sort.Strings(matches)
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// expandGlob expands a glob pattern to a list of matching file paths.
// Uses doublestar for ** support, falls back to filepath.Glob for simple patterns.
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return doublestar.FilepathGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// ConfigDir returns the directory a config file is looked up in: the first
// input if it is a directory, otherwise its parent.
func ConfigDir(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
		return paths[0]
	}
	return filepath.Dir(paths[0])
}

// LoadInputs extracts record schemas from expanded input paths. A directory
// or .go file selects a Go package (at most one), .cue files are CUE schema
// sources, and a directory without Go files contributes its .cue files.
// Extraction errors from every input are collected.
func LoadInputs(paths []string, opts LoadOptions) (*LoadResult, error) {
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no inputs"}
	}

	goDir, cueFiles, err := classifyInputs(paths)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Reserved: make(map[string]bool)}
	copts := compiler.Options{InferValueFields: opts.InferValueFields}
	var errs ir.SchemaErrors

	if goDir != "" {
		pkg, err := compiler.LoadPackage(goDir)
		if err != nil {
			if ir.IsSchemaError(err) {
				return nil, err
			}
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading Go package %s", goDir), Err: err}
		}
		result.Package = pkg.Name
		result.Dir = pkg.Dir
		result.Reserved = pkg.Symbols
		for _, f := range pkg.Files {
			result.Files = append(result.Files, pkg.Fset.Position(f.Package).Filename)
		}
		copts.Package = pkg.Name
		copts.LocalTypes = pkg.HasType
		copts.LocalFuncs = pkg.HasFunc

		names := pkg.Discover()
		if len(opts.Types) > 0 {
			names = nil
			for _, t := range opts.Types {
				if pkg.HasType(t) {
					names = append(names, t)
				}
			}
		}
		for _, name := range names {
			schema, err := pkg.Extract(name, copts)
			if err != nil {
				if list := ir.AsSchemaErrors(err); list != nil {
					errs = append(errs, list...)
					continue
				}
				return nil, err
			}
			result.Schemas = append(result.Schemas, schema)
		}
	}

	if len(cueFiles) > 0 {
		ctx := cuecontext.New()
		for _, path := range cueFiles {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s", path), Err: err}
			}
			result.Files = append(result.Files, path)
			if result.Dir == "" {
				result.Dir = filepath.Dir(path)
			}

			schemas, err := compiler.CompileRecords(ctx.CompileBytes(data, cue.Filename(path)), copts)
			if err != nil {
				if list := ir.AsSchemaErrors(err); list != nil {
					errs = append(errs, list...)
					continue
				}
				return nil, err
			}
			for _, s := range schemas {
				if len(opts.Types) == 0 || slices.Contains(opts.Types, s.Name) {
					result.Schemas = append(result.Schemas, s)
				}
			}
		}
	}

	for _, t := range opts.Types {
		if !slices.ContainsFunc(result.Schemas, func(s *ir.RecordSchema) bool { return s.Name == t }) && !hasErrorFor(errs, t) {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeRecordNotFound,
				Record:  t,
				Message: "record not found in the inputs",
			})
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	if len(result.Schemas) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no records found: mark a struct type with %s or pass --type", compiler.Directive)}
	}
	if result.Package == "" {
		result.Package = result.Schemas[0].Package
	}
	return result, nil
}

func hasErrorFor(errs ir.SchemaErrors, record string) bool {
	return slices.ContainsFunc(errs, func(e *ir.SchemaError) bool { return e.Record == record })
}

// classifyInputs splits paths into the Go package directory and CUE files.
func classifyInputs(paths []string) (string, []string, error) {
	var (
		goDir    string
		cueFiles []string
	)
	setGoDir := func(dir string) error {
		dir = filepath.Clean(dir)
		if goDir != "" && goDir != dir {
			return &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("inputs span Go packages %s and %s", goDir, dir)}
		}
		goDir = dir
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("input not found: %s", p)}
			}
			return "", nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("accessing %s", p), Err: err}
		}

		switch {
		case info.IsDir():
			goFiles, cues, err := scanDir(p)
			if err != nil {
				return "", nil, err
			}
			if goFiles {
				if err := setGoDir(p); err != nil {
					return "", nil, err
				}
				continue
			}
			if len(cues) == 0 {
				return "", nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no Go or CUE files in %s", p)}
			}
			cueFiles = append(cueFiles, cues...)
		case filepath.Ext(p) == ".go":
			if err := setGoDir(filepath.Dir(p)); err != nil {
				return "", nil, err
			}
		case filepath.Ext(p) == ".cue":
			cueFiles = append(cueFiles, p)
		default:
			return "", nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("unsupported input %s: want a Go package, .go file or .cue file", p)}
		}
	}

	slices.Sort(cueFiles)
	return goDir, slices.Compact(cueFiles), nil
}

// scanDir reports whether dir holds non-test Go files and lists its CUE files.
func scanDir(dir string) (bool, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory %s", dir), Err: err}
	}
	var (
		hasGo bool
		cues  []string
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go"):
			hasGo = true
		case filepath.Ext(name) == ".cue":
			cues = append(cues, filepath.Join(dir, name))
		}
	}
	return hasGo, cues, nil
}
