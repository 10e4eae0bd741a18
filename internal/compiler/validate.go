package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cellgen/internal/ir"
	"github.com/roach88/cellgen/internal/naming"
)

// Validate checks a schema against the structural rules every front-end must
// satisfy. Returns all errors found (does not fail-fast).
func Validate(s *ir.RecordSchema) ir.SchemaErrors {
	var errs ir.SchemaErrors

	add := func(code, field, msg string, pos ir.Position) {
		errs = append(errs, &ir.SchemaError{
			Code:    code,
			Record:  s.Name,
			Field:   field,
			Message: msg,
			Pos:     pos,
		})
	}

	// E205: record and package names must be identifiers
	if !naming.IsIdentifier(s.Name) {
		add(ir.ErrCodeInvalidIdentifier, "", fmt.Sprintf("record name %q is not a Go identifier", s.Name), s.Pos)
	}
	if !naming.IsIdentifier(s.Package) {
		add(ir.ErrCodeInvalidIdentifier, "", fmt.Sprintf("package name %q is not a Go identifier", s.Package), s.Pos)
	}

	// E207: record duplication mode
	if _, ok := ir.ParseDuplication(string(s.Duplication)); !ok {
		add(ir.ErrCodeInvalidDup, "", fmt.Sprintf("unknown duplication %q, must be \"value\", \"clone\" or \"none\"", s.Duplication), s.Pos)
	}

	// E212: init must name a function
	if s.Init != "" && !naming.IsIdentifier(s.Init) {
		add(ir.ErrCodeInvalidInit, "", fmt.Sprintf("init %q is not a Go identifier", s.Init), s.Pos)
	}

	if s.FieldsOnly && s.Init != "" {
		add(ir.ErrCodeInvalidInit, "", "init has no effect on a fields-only record", s.Pos)
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		// E205: field names must be identifiers
		if !naming.IsIdentifier(f.Name) || f.Name == "_" {
			add(ir.ErrCodeInvalidIdentifier, f.Name, fmt.Sprintf("field name %q is not a selectable Go identifier", f.Name), f.Pos)
		}

		// E204: duplicate field name
		if seen[f.Name] {
			add(ir.ErrCodeDuplicateField, f.Name, fmt.Sprintf("duplicate field name %q", f.Name), f.Pos)
		}
		seen[f.Name] = true

		// E206: type is required
		if strings.TrimSpace(f.TypeName) == "" {
			add(ir.ErrCodeEmptyType, f.Name, "field type is empty", f.Pos)
		}

		// E207: field duplication mode
		if _, ok := ir.ParseDuplication(string(f.Duplication)); !ok {
			add(ir.ErrCodeInvalidDup, f.Name, fmt.Sprintf("unknown duplication %q, must be \"value\", \"clone\" or \"none\"", f.Duplication), f.Pos)
		}
	}

	seenImports := make(map[string]string, len(s.Imports))
	for _, imp := range s.Imports {
		if imp.Path == "" {
			add(ir.ErrCodeUnresolvedType, "", "import with empty path", s.Pos)
			continue
		}
		if imp.Name != "" && imp.Name != "_" && imp.Name != "." && !naming.IsIdentifier(imp.Name) {
			add(ir.ErrCodeInvalidIdentifier, "", fmt.Sprintf("import name %q is not a Go identifier", imp.Name), s.Pos)
		}
		key := importKey(imp)
		if prev, ok := seenImports[key]; ok && prev != imp.Path {
			add(ir.ErrCodeUnresolvedType, "", fmt.Sprintf("import name %s refers to both %q and %q", key, prev, imp.Path), s.Pos)
		}
		seenImports[key] = imp.Path
	}

	return errs
}

// importKey is the name a file refers to an import by.
func importKey(imp ir.Import) string {
	if imp.Name != "" {
		return imp.Name
	}
	return GuessPackageName(imp.Path)
}
