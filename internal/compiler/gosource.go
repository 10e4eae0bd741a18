package compiler

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/cellgen/internal/ir"
)

// GeneratedMarker starts the header of every file cellgen writes. Files
// carrying it are skipped when a package is parsed, so regeneration never
// collides with its own previous output.
const GeneratedMarker = "// Code generated by cellgen"

// TagKey is the struct tag key for field annotations.
const TagKey = "cell"

// Options tunes extraction.
type Options struct {
	// InferValueFields marks fields of predeclared scalar type (int, string,
	// bool, ...) as value-duplicable when they carry no explicit tag.
	InferValueFields bool

	// Package is the Go package name used by the CUE front-end when a record
	// does not name one.
	Package string

	// LocalTypes, when set, lets the CUE front-end check bare type names
	// against the target package. See Package.HasType.
	LocalTypes func(name string) bool

	// LocalFuncs, when set, lets the CUE front-end check that init names a
	// function of the target package. See Package.HasFunc.
	LocalFuncs func(name string) bool
}

// Package is a parsed Go package directory.
type Package struct {
	Name  string
	Dir   string
	Fset  *token.FileSet
	Files []*ast.File

	// Symbols holds every package-level identifier declared by the user.
	Symbols map[string]bool

	typeSpecs map[string]*typeSpec
	order     []string
	funcs     map[string]*ast.FuncDecl
	methods   map[string][]*ast.FuncDecl // receiver base type -> methods
}

type typeSpec struct {
	spec *ast.TypeSpec
	doc  *ast.CommentGroup
	file *ast.File
}

// LoadPackage parses the non-test Go files of the package at path. path may
// be a directory or one of the package's .go files.
func LoadPackage(path string) (*Package, error) {
	dir := path
	if info, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("loading package: %w", err)
	} else if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading package: %w", err)
	}

	pkg := &Package{
		Dir:       dir,
		Fset:      token.NewFileSet(),
		Symbols:   make(map[string]bool),
		typeSpecs: make(map[string]*typeSpec),
		funcs:     make(map[string]*ast.FuncDecl),
		methods:   make(map[string][]*ast.FuncDecl),
	}

	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".go") || strings.HasSuffix(n, "_test.go") {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		filename := filepath.Join(dir, n)
		f, err := parser.ParseFile(pkg.Fset, filename, nil, parser.ParseComments)
		if err != nil {
			return nil, &ir.SchemaError{Code: ir.ErrCodeParse, Message: err.Error(), Pos: ir.Position{Filename: filename}}
		}
		if isCellgenOutput(f) {
			slog.Debug("skipping generated file", "file", filename)
			continue
		}
		if pkg.Name == "" {
			pkg.Name = f.Name.Name
		} else if f.Name.Name != pkg.Name {
			return nil, &ir.SchemaError{
				Code:    ir.ErrCodeParse,
				Message: fmt.Sprintf("found packages %s and %s in %s", pkg.Name, f.Name.Name, dir),
				Pos:     position(pkg.Fset, f.Name.Pos()),
			}
		}
		pkg.Files = append(pkg.Files, f)
		pkg.index(f)
	}

	if len(pkg.Files) == 0 {
		return nil, &ir.SchemaError{Code: ir.ErrCodeParse, Message: fmt.Sprintf("no Go files in %s", dir), Pos: ir.Position{Filename: dir}}
	}
	return pkg, nil
}

func isCellgenOutput(f *ast.File) bool {
	for _, cg := range f.Comments {
		if cg.Pos() >= f.Package {
			break
		}
		for _, c := range cg.List {
			if strings.HasPrefix(c.Text, GeneratedMarker) {
				return true
			}
		}
	}
	return false
}

func (p *Package) index(f *ast.File) {
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					p.Symbols[s.Name.Name] = true
					doc := s.Doc
					if doc == nil && len(d.Specs) == 1 {
						doc = d.Doc
					}
					if _, dup := p.typeSpecs[s.Name.Name]; !dup {
						p.order = append(p.order, s.Name.Name)
					}
					p.typeSpecs[s.Name.Name] = &typeSpec{spec: s, doc: doc, file: f}
				case *ast.ValueSpec:
					for _, n := range s.Names {
						if n.Name != "_" {
							p.Symbols[n.Name] = true
						}
					}
				}
			}
		case *ast.FuncDecl:
			if d.Recv == nil {
				if d.Name.Name != "init" && d.Name.Name != "_" {
					p.Symbols[d.Name.Name] = true
					p.funcs[d.Name.Name] = d
				}
				continue
			}
			if base := receiverBase(d.Recv); base != "" {
				p.methods[base] = append(p.methods[base], d)
			}
		}
	}
}

func receiverBase(recv *ast.FieldList) string {
	if recv == nil || len(recv.List) == 0 {
		return ""
	}
	t := recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	switch x := t.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.IndexExpr:
		if id, ok := x.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.IndexListExpr:
		if id, ok := x.X.(*ast.Ident); ok {
			return id.Name
		}
	}
	return ""
}

// HasType reports whether the package declares a type called name.
func (p *Package) HasType(name string) bool {
	_, ok := p.typeSpecs[name]
	return ok
}

// HasFunc reports whether the package declares a top-level function called
// name.
func (p *Package) HasFunc(name string) bool {
	_, ok := p.funcs[name]
	return ok
}

// Discover returns the names of every type carrying a //cell:store or
// //cell:fields directive, in file and declaration order.
func (p *Package) Discover() []string {
	var out []string
	for _, name := range p.order {
		doc := p.typeSpecs[name].doc
		_, store := findDirective(doc)
		_, fields := findFieldsDirective(doc)
		if store || fields {
			out = append(out, name)
		}
	}
	return out
}

// Extract builds the schema of the struct type called name.
func (p *Package) Extract(name string, opts Options) (*ir.RecordSchema, error) {
	ts, ok := p.typeSpecs[name]
	if !ok {
		return nil, &ir.SchemaError{
			Code:    ir.ErrCodeRecordNotFound,
			Record:  name,
			Message: fmt.Sprintf("type %s is not declared in package %s", name, p.Name),
			Pos:     ir.Position{Filename: p.Dir},
		}
	}
	pos := position(p.Fset, ts.spec.Name.Pos())

	if ts.spec.TypeParams != nil && len(ts.spec.TypeParams.List) > 0 {
		return nil, &ir.SchemaError{Code: ir.ErrCodeGenericRecord, Record: name, Message: "generic record types are not supported", Pos: pos}
	}
	if ts.spec.Assign.IsValid() {
		return nil, &ir.SchemaError{Code: ir.ErrCodeNotAggregate, Record: name, Message: "type aliases are not supported, declare a struct type", Pos: pos}
	}
	st, ok := ts.spec.Type.(*ast.StructType)
	if !ok {
		return nil, &ir.SchemaError{
			Code:    ir.ErrCodeNotAggregate,
			Record:  name,
			Message: fmt.Sprintf("%s is a %s, not a plain struct", name, describeType(ts.spec.Type)),
			Pos:     pos,
		}
	}

	schema := &ir.RecordSchema{Name: name, Package: p.Name, Pos: pos}

	var errs ir.SchemaErrors
	explicit := false
	fieldsArgs, fieldsOnly := findFieldsDirective(ts.doc)
	if fieldsOnly {
		schema.FieldsOnly = true
		if fieldsArgs != "" {
			errs = append(errs, &ir.SchemaError{Code: ir.ErrCodeInvalidDirective, Record: name, Message: fmt.Sprintf("%s takes no arguments, got %q", FieldsDirective, fieldsArgs), Pos: pos})
		}
	}
	if text, found := findDirective(ts.doc); found {
		if fieldsOnly {
			errs = append(errs, &ir.SchemaError{Code: ir.ErrCodeInvalidDirective, Record: name, Message: fmt.Sprintf("%s and %s cannot both mark a type", Directive, FieldsDirective), Pos: pos})
		}
		d, err := parseDirective(text)
		if err != nil {
			errs = append(errs, &ir.SchemaError{Code: ir.ErrCodeInvalidDirective, Record: name, Message: err.Error(), Pos: pos})
		}
		schema.Duplication = d.dup
		schema.Init = d.init
		explicit = d.explicit
		if d.init != "" && p.funcs[d.init] == nil {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeInvalidInit,
				Record:  name,
				Message: fmt.Sprintf("init function %s is not declared in package %s", d.init, p.Name),
				Pos:     pos,
			})
		}
	}
	if !explicit && !fieldsOnly && p.hasCloneMethod(name) {
		schema.Duplication = ir.DupClone
	}

	scope := &fileScope{pkg: p, file: ts.file}
	res := newResolver(scope)
	for _, field := range st.Fields.List {
		names := selectableNames(field)
		if len(names) == 0 {
			continue
		}
		fpos := position(p.Fset, field.Pos())

		dup, skip, tagErr := fieldTag(field)
		if tagErr != "" {
			for _, n := range names {
				errs = append(errs, &ir.SchemaError{Code: ir.ErrCodeInvalidDup, Record: name, Field: n, Message: tagErr, Pos: fpos})
			}
			continue
		}
		if skip {
			continue
		}
		if dup == ir.DupNone && opts.InferValueFields && !hasTag(field) && isValueKind(field.Type) {
			dup = ir.DupValue
		}

		if msg := res.check(field.Type); msg != "" {
			for _, n := range names {
				errs = append(errs, &ir.SchemaError{Code: ir.ErrCodeUnresolvedType, Record: name, Field: n, Message: msg, Pos: fpos})
			}
			continue
		}

		typeName := types.ExprString(field.Type)
		for _, n := range names {
			schema.Fields = append(schema.Fields, ir.FieldDescriptor{
				Name:        n,
				TypeName:    typeName,
				Duplication: dup,
				Pos:         fpos,
			})
		}
	}
	schema.Imports = sortedImports(res.imports)

	errs = append(errs, Validate(schema)...)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return schema, nil
}

// hasCloneMethod reports whether the package declares func (R) Clone() R or
// func (*R) Clone() R.
func (p *Package) hasCloneMethod(name string) bool {
	for _, m := range p.methods[name] {
		if m.Name.Name != "Clone" || m.Type.Params.NumFields() != 0 || m.Type.Results.NumFields() != 1 {
			continue
		}
		if id, ok := m.Type.Results.List[0].Type.(*ast.Ident); ok && id.Name == name {
			return true
		}
	}
	return false
}

// selectableNames returns the field's names without blank identifiers.
func selectableNames(f *ast.Field) []string {
	var out []string
	for _, n := range fieldNames(f) {
		if n != "_" {
			out = append(out, n)
		}
	}
	return out
}

func fieldNames(f *ast.Field) []string {
	if len(f.Names) > 0 {
		out := make([]string, len(f.Names))
		for i, n := range f.Names {
			out[i] = n.Name
		}
		return out
	}
	// Embedded field: the name is the unqualified type name.
	t := f.Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	switch x := t.(type) {
	case *ast.Ident:
		return []string{x.Name}
	case *ast.SelectorExpr:
		return []string{x.Sel.Name}
	case *ast.IndexExpr:
		return fieldNames(&ast.Field{Type: x.X})
	case *ast.IndexListExpr:
		return fieldNames(&ast.Field{Type: x.X})
	}
	return []string{types.ExprString(f.Type)}
}

func hasTag(f *ast.Field) bool {
	if f.Tag == nil {
		return false
	}
	tag, err := strconv.Unquote(f.Tag.Value)
	if err != nil {
		return false
	}
	_, ok := reflect.StructTag(tag).Lookup(TagKey)
	return ok
}

// fieldTag reads the `cell:"..."` tag: "value", "clone", "none" or "-".
func fieldTag(f *ast.Field) (dup ir.Duplication, skip bool, errMsg string) {
	if f.Tag == nil {
		return ir.DupNone, false, ""
	}
	tag, err := strconv.Unquote(f.Tag.Value)
	if err != nil {
		return ir.DupNone, false, fmt.Sprintf("malformed struct tag %s", f.Tag.Value)
	}
	v, ok := reflect.StructTag(tag).Lookup(TagKey)
	if !ok {
		return ir.DupNone, false, ""
	}
	if v == "-" {
		return ir.DupNone, true, ""
	}
	d, ok := ir.ParseDuplication(v)
	if !ok {
		return ir.DupNone, false, fmt.Sprintf("unknown %s tag %q, must be \"value\", \"clone\", \"none\" or \"-\"", TagKey, v)
	}
	return d, false, ""
}

func describeType(expr ast.Expr) string {
	switch expr.(type) {
	case *ast.InterfaceType:
		return "interface (sum type)"
	case *ast.Ident, *ast.SelectorExpr:
		return "defined type over " + types.ExprString(expr)
	case *ast.MapType:
		return "map type"
	case *ast.ArrayType:
		return "slice or array type"
	case *ast.FuncType:
		return "func type"
	case *ast.ChanType:
		return "chan type"
	case *ast.StarExpr:
		return "pointer type"
	default:
		return types.ExprString(expr)
	}
}

func sortedImports(m map[string]ir.Import) []ir.Import {
	if len(m) == 0 {
		return nil
	}
	out := make([]ir.Import, 0, len(m))
	for _, imp := range m {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func position(fset *token.FileSet, pos token.Pos) ir.Position {
	p := fset.Position(pos)
	return ir.Position{Filename: p.Filename, Line: p.Line, Column: p.Column}
}

// fileScope resolves names as seen from one file of a package.
type fileScope struct {
	pkg  *Package
	file *ast.File
}

func (s *fileScope) localType(name string) bool {
	_, ok := s.pkg.typeSpecs[name]
	return ok
}

func (s *fileScope) importFor(pkgName string) (ir.Import, bool) {
	for _, spec := range s.file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		if spec.Name != nil {
			if spec.Name.Name == pkgName {
				return ir.Import{Name: pkgName, Path: path}, true
			}
			continue
		}
		if GuessPackageName(path) == pkgName {
			return ir.Import{Path: path}, true
		}
	}
	return ir.Import{}, false
}
