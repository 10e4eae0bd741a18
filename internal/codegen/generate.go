package codegen

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"go/format"
	"log/slog"
	"sort"
	"strings"
	"text/template"

	"github.com/roach88/cellgen/internal/compiler"
	"github.com/roach88/cellgen/internal/ir"
	"github.com/roach88/cellgen/internal/naming"
)

// DefaultRuntimeImport is the import path of the runtime package the
// generated code builds on.
const DefaultRuntimeImport = "github.com/roach88/cellgen/pkg/cell"

// Header is the first line of every generated file.
const Header = "// Code generated by cellgen. DO NOT EDIT."

// runtimeName is the identifier generated code refers to the runtime by.
const runtimeName = "cell"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("cellgen").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl"))

// Options configures a generation run.
type Options struct {
	// Package is the package clause of the generated file. Defaults to the
	// package of the first schema.
	Package string

	// RuntimeImport overrides DefaultRuntimeImport.
	RuntimeImport string

	// Reserved holds the package-level identifiers the user's package already
	// declares. Generated identifiers must not reuse them.
	Reserved map[string]bool
}

// Generate renders schemas into one Go file. All schemas must belong to the
// same package. Every problem found is reported together and no source is
// produced unless the whole unit is valid.
func Generate(schemas []*ir.RecordSchema, opts Options) (*Unit, error) {
	if len(schemas) == 0 {
		return nil, errors.New("no records to generate")
	}
	runtime := opts.RuntimeImport
	if runtime == "" {
		runtime = DefaultRuntimeImport
	}
	pkgName := opts.Package
	if pkgName == "" {
		pkgName = schemas[0].Package
	}

	plans, errs := planUnit(schemas, pkgName, opts.Reserved)
	imports, importErrs := unitImports(schemas, runtime, opts.Reserved)
	errs = append(errs, importErrs...)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	fp, err := ir.Fingerprint(runtime, schemas...)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting schemas: %w", err)
	}

	unit := &Unit{Package: pkgName, Fingerprint: fp, Imports: imports}
	for i, s := range schemas {
		unit.Records = append(unit.Records, s.Name)
		decls, err := renderRecord(s, plans[i])
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", s.Name, err)
		}
		unit.Decls = append(unit.Decls, decls...)
	}

	var b bytes.Buffer
	b.WriteString(Header + "\n")
	b.WriteString(FingerprintPrefix + fp + "\n\n")
	fmt.Fprintf(&b, "package %s\n", pkgName)
	writeImports(&b, imports)
	for _, d := range unit.Decls {
		b.WriteString("\n")
		b.WriteString(d.Source)
		b.WriteString("\n")
	}

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated code: %w", err)
	}
	unit.Source = src

	slog.Debug("generated unit",
		"package", pkgName,
		"records", len(schemas),
		"decls", len(unit.Decls),
		"fingerprint", fp)
	return unit, nil
}

// planUnit validates every schema and computes its identifiers. Identifiers
// must be unique across the whole unit, including the record type names.
func planUnit(schemas []*ir.RecordSchema, pkgName string, reserved map[string]bool) ([]*naming.Plan, ir.SchemaErrors) {
	var errs ir.SchemaErrors
	owner := make(map[string]string)
	for _, s := range schemas {
		if prev, ok := owner[s.Name]; ok {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeUnitCollision,
				Record:  s.Name,
				Message: fmt.Sprintf("record %s is declared twice in the unit", prev),
				Pos:     s.Pos,
			})
		}
		owner[s.Name] = s.Name
	}

	plans := make([]*naming.Plan, len(schemas))
	for i, s := range schemas {
		if s.Package != pkgName {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeUnitCollision,
				Record:  s.Name,
				Message: fmt.Sprintf("record belongs to package %s, unit is package %s", s.Package, pkgName),
				Pos:     s.Pos,
			})
		}
		if verrs := compiler.Validate(s); len(verrs) > 0 {
			errs = append(errs, verrs...)
			continue
		}

		plan, err := naming.NewPlan(s, reserved)
		if err != nil {
			errs = append(errs, ir.AsSchemaErrors(err)...)
			continue
		}
		plans[i] = plan

		for _, id := range plan.Identifiers() {
			if prev, ok := owner[id]; ok && prev != s.Name {
				errs = append(errs, &ir.SchemaError{
					Code:    ir.ErrCodeUnitCollision,
					Record:  s.Name,
					Message: fmt.Sprintf("generated identifier %s collides with record %s", id, prev),
					Pos:     s.Pos,
				})
				continue
			}
			owner[id] = s.Name
		}
	}
	return plans, errs
}

// unitImports merges the imports of every record with the ones generated code
// needs itself. Two paths claiming the same name are an error.
func unitImports(schemas []*ir.RecordSchema, runtime string, reserved map[string]bool) ([]ir.Import, ir.SchemaErrors) {
	var errs ir.SchemaErrors
	byName := make(map[string]ir.Import)

	add := func(imp ir.Import, record string, pos ir.Position) {
		key := importName(imp)
		if prev, ok := byName[key]; ok {
			if prev.Path != imp.Path {
				errs = append(errs, &ir.SchemaError{
					Code:    ir.ErrCodeUnitCollision,
					Record:  record,
					Message: fmt.Sprintf("import name %s refers to both %q and %q", key, prev.Path, imp.Path),
					Pos:     pos,
				})
			}
			return
		}
		if reserved[key] {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeSymbolCollision,
				Record:  record,
				Message: fmt.Sprintf("import name %s is already declared in the package", key),
				Pos:     pos,
			})
		}
		byName[key] = imp
	}

	runtimeImp := ir.Import{Path: runtime}
	if compiler.GuessPackageName(runtime) != runtimeName {
		runtimeImp.Name = runtimeName
	}
	add(runtimeImp, "", ir.Position{})

	for _, s := range schemas {
		if s.Duplicable() && !s.FieldsOnly {
			add(ir.Import{Path: "context"}, s.Name, s.Pos)
		}
		for _, imp := range s.Imports {
			add(imp, s.Name, s.Pos)
		}
	}

	out := make([]ir.Import, 0, len(byName))
	for _, imp := range byName {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Name < out[j].Name
	})
	return out, errs
}

func importName(imp ir.Import) string {
	if imp.Name != "" {
		return imp.Name
	}
	return compiler.GuessPackageName(imp.Path)
}

// writeImports writes the import declaration: standard library first, then
// everything else, each group sorted by path.
func writeImports(b *bytes.Buffer, imports []ir.Import) {
	if len(imports) == 1 {
		fmt.Fprintf(b, "\nimport %s\n", importSpec(imports[0]))
		return
	}

	var std, other []string
	for _, imp := range imports {
		if isStdlib(imp.Path) {
			std = append(std, importSpec(imp))
		} else {
			other = append(other, importSpec(imp))
		}
	}

	b.WriteString("\nimport (\n")
	for _, s := range std {
		b.WriteString("\t" + s + "\n")
	}
	if len(std) > 0 && len(other) > 0 {
		b.WriteString("\n")
	}
	for _, s := range other {
		b.WriteString("\t" + s + "\n")
	}
	b.WriteString(")\n")
}

func importSpec(imp ir.Import) string {
	if imp.Name != "" {
		return fmt.Sprintf("%s %q", imp.Name, imp.Path)
	}
	return fmt.Sprintf("%q", imp.Path)
}

// isStdlib reports whether path looks like a standard library import: its
// first element has no dot.
func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
