package compiler

import (
	"fmt"
	"go/parser"
	"go/types"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cellgen/internal/ir"
	"github.com/roach88/cellgen/internal/naming"
)

// CompileRecords compiles every entry of the top-level `record:` struct of a
// CUE value, in declaration order. Errors from all records are collected.
//
//	record: Counter: {
//		go_package:  "counter"
//		duplication: "value"
//		init:        "newCounter"
//		fields_only: false
//		imports: [{path: "time"}]
//		fields: {
//			Name:    {type: "string", duplication: "value"}
//			Updated: "time.Time"
//		}
//	}
func CompileRecords(v cue.Value, opts Options) ([]*ir.RecordSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	recordsVal := v.LookupPath(cue.ParsePath("record"))
	if !recordsVal.Exists() {
		return nil, &ir.SchemaError{Code: ir.ErrCodeRecordNotFound, Message: "no record definitions found", Pos: cuePosition(v.Pos())}
	}

	iter, err := recordsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var (
		out  []*ir.RecordSchema
		errs ir.SchemaErrors
	)
	for iter.Next() {
		schema, err := CompileRecord(iter.Value(), opts)
		if err != nil {
			if list := ir.AsSchemaErrors(err); list != nil {
				errs = append(errs, list...)
				continue
			}
			return nil, err
		}
		out = append(out, schema)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CompileRecord compiles one record struct. The record name is the last
// label of the value's path, e.g. record.Counter.
func CompileRecord(v cue.Value, opts Options) (*ir.RecordSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := &ir.RecordSchema{Pos: cuePosition(v.Pos())}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		schema.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if schema.Package, err = optionalString(v, "go_package"); err != nil {
		return nil, err
	}
	if schema.Package == "" {
		schema.Package = opts.Package
	}

	dupText, err := optionalString(v, "duplication")
	if err != nil {
		return nil, err
	}
	schema.Duplication = ir.Duplication(dupText)
	if dupText == "none" {
		schema.Duplication = ir.DupNone
	}

	if schema.Init, err = optionalString(v, "init"); err != nil {
		return nil, err
	}

	if schema.FieldsOnly, err = optionalBool(v, "fields_only"); err != nil {
		return nil, err
	}

	// Declared imports are validated as written; only the ones a field type
	// refers to reach the generated file.
	if schema.Imports, err = parseImports(v); err != nil {
		return nil, err
	}

	fields, used, err := parseFields(v, schema, opts)
	if err != nil {
		return nil, err
	}
	schema.Fields = fields

	errs := Validate(schema)
	if schema.Init != "" && opts.LocalFuncs != nil && naming.IsIdentifier(schema.Init) && !opts.LocalFuncs(schema.Init) {
		errs = append(errs, &ir.SchemaError{
			Code:    ir.ErrCodeInvalidInit,
			Record:  schema.Name,
			Message: fmt.Sprintf("init function %s is not declared in package %s", schema.Init, schema.Package),
			Pos:     schema.Pos,
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	schema.Imports = used
	return schema, nil
}

func optionalBool(v cue.Value, path string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// parseImports reads `imports: [{name?: string, path: string}]`.
func parseImports(v cue.Value) ([]ir.Import, error) {
	importsVal := v.LookupPath(cue.ParsePath("imports"))
	if !importsVal.Exists() {
		return nil, nil
	}

	iter, err := importsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var imports []ir.Import
	for iter.Next() {
		item := iter.Value()
		path, err := item.LookupPath(cue.ParsePath("path")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		name, err := optionalString(item, "name")
		if err != nil {
			return nil, err
		}
		imports = append(imports, ir.Import{Name: name, Path: path})
	}
	return imports, nil
}

// parseFields reads the ordered `fields:` struct. Each field is either a type
// string or {type: string, duplication?: string}. It also returns the
// declared imports the field types refer to.
func parseFields(v cue.Value, schema *ir.RecordSchema, opts Options) ([]ir.FieldDescriptor, []ir.Import, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	scope := &cueScope{imports: schema.Imports, localTypes: opts.LocalTypes}
	res := newResolver(scope)

	var (
		fields []ir.FieldDescriptor
		errs   ir.SchemaErrors
	)
	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()
		pos := cuePosition(fv.Pos())

		typeText, dupText, err := fieldSpec(fv)
		if err != nil {
			return nil, nil, err
		}

		dup, ok := ir.ParseDuplication(dupText)
		if !ok {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeInvalidDup,
				Record:  schema.Name,
				Field:   name,
				Message: fmt.Sprintf("unknown duplication %q, must be \"value\", \"clone\" or \"none\"", dupText),
				Pos:     pos,
			})
			continue
		}

		if strings.TrimSpace(typeText) == "" {
			fields = append(fields, ir.FieldDescriptor{Name: name, Duplication: dup, Pos: pos})
			continue
		}

		expr, err := parser.ParseExpr(typeText)
		if err != nil {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeUnresolvedType,
				Record:  schema.Name,
				Field:   name,
				Message: fmt.Sprintf("type %q is not a Go type expression", typeText),
				Pos:     pos,
			})
			continue
		}
		if msg := res.check(expr); msg != "" {
			errs = append(errs, &ir.SchemaError{Code: ir.ErrCodeUnresolvedType, Record: schema.Name, Field: name, Message: msg, Pos: pos})
			continue
		}

		if dupText == "" && opts.InferValueFields && isValueKind(expr) {
			dup = ir.DupValue
		}

		fields = append(fields, ir.FieldDescriptor{
			Name:        name,
			TypeName:    types.ExprString(expr),
			Duplication: dup,
			Pos:         pos,
		})
	}

	if err := errs.Err(); err != nil {
		return nil, nil, err
	}
	return fields, sortedImports(res.imports), nil
}

func fieldSpec(fv cue.Value) (typeText, dupText string, err error) {
	if s, strErr := fv.String(); strErr == nil {
		return s, "", nil
	}
	if fv.IncompleteKind() != cue.StructKind {
		return "", "", &ir.SchemaError{
			Code:    ir.ErrCodeEmptyType,
			Message: fmt.Sprintf("field must be a type string or a struct, got %v", fv.IncompleteKind()),
			Pos:     cuePosition(fv.Pos()),
		}
	}
	if typeText, err = optionalString(fv, "type"); err != nil {
		return "", "", err
	}
	if dupText, err = optionalString(fv, "duplication"); err != nil {
		return "", "", err
	}
	return typeText, dupText, nil
}

// cueScope resolves names for a CUE record. Qualified types need a declared
// import. Bare identifiers are checked against localTypes when set and
// otherwise assumed to be declared in the record's package.
type cueScope struct {
	imports    []ir.Import
	localTypes func(name string) bool
}

func (s *cueScope) localType(name string) bool {
	if s.localTypes == nil {
		return true
	}
	return s.localTypes(name)
}

func (s *cueScope) importFor(pkgName string) (ir.Import, bool) {
	for _, imp := range s.imports {
		if importKey(imp) == pkgName {
			return imp, true
		}
	}
	return ir.Import{}, false
}

func cuePosition(p token.Pos) ir.Position {
	if !p.IsValid() {
		return ir.Position{}
	}
	return ir.Position{Filename: p.Filename(), Line: p.Line(), Column: p.Column()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	se := &ir.SchemaError{Code: ir.ErrCodeParse, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		se.Pos = cuePosition(positions[0])
	}
	return se
}
