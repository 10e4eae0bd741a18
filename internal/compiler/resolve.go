package compiler

import (
	"fmt"
	"go/ast"
	"go/types"
	"regexp"
	"strings"

	"github.com/roach88/cellgen/internal/ir"
)

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// GuessPackageName guesses the package name of an import path the way
// goimports does: the last path element, skipping a major version suffix,
// cut at the first dot, without a "go-" prefix.
func GuessPackageName(path string) string {
	elems := strings.Split(path, "/")
	name := elems[len(elems)-1]
	if majorVersion.MatchString(name) && len(elems) > 1 {
		name = elems[len(elems)-2]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	return strings.ReplaceAll(name, "-", "_")
}

// typeScope answers the questions type resolution needs about the place a
// type expression is written.
type typeScope interface {
	// localType reports whether name is a type declared in the record's package.
	localType(name string) bool

	// importFor returns the import a qualified identifier refers to.
	importFor(pkgName string) (ir.Import, bool)
}

// resolver walks a type expression, checks every named type resolves and
// records the imports the expression needs.
type resolver struct {
	scope   typeScope
	imports map[string]ir.Import // keyed by the name the file uses
	bad     []string
}

func newResolver(scope typeScope) *resolver {
	return &resolver{scope: scope, imports: make(map[string]ir.Import)}
}

// check resolves expr. It returns a description of the first unresolved
// reference, or "" when everything resolves.
func (r *resolver) check(expr ast.Expr) string {
	r.bad = r.bad[:0]
	r.walk(expr)
	if len(r.bad) == 0 {
		return ""
	}
	return r.bad[0]
}

func (r *resolver) walk(expr ast.Expr) {
	switch x := expr.(type) {
	case nil:
		r.bad = append(r.bad, "missing type")
	case *ast.Ident:
		if isPredeclaredType(x.Name) || r.scope.localType(x.Name) {
			return
		}
		r.bad = append(r.bad, fmt.Sprintf("undefined type %s", x.Name))
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		if !ok {
			r.bad = append(r.bad, fmt.Sprintf("unsupported qualified type %s", types.ExprString(x)))
			return
		}
		imp, ok := r.scope.importFor(pkg.Name)
		if !ok {
			r.bad = append(r.bad, fmt.Sprintf("package %s is not imported", pkg.Name))
			return
		}
		r.imports[pkg.Name] = imp
	case *ast.StarExpr:
		r.walk(x.X)
	case *ast.ParenExpr:
		r.walk(x.X)
	case *ast.ArrayType:
		r.walk(x.Elt)
	case *ast.Ellipsis:
		r.walk(x.Elt)
	case *ast.MapType:
		r.walk(x.Key)
		r.walk(x.Value)
	case *ast.ChanType:
		r.walk(x.Value)
	case *ast.FuncType:
		r.fieldList(x.Params)
		r.fieldList(x.Results)
	case *ast.StructType:
		r.fieldList(x.Fields)
	case *ast.InterfaceType:
		for _, m := range x.Methods.List {
			r.walk(m.Type)
		}
	case *ast.IndexExpr:
		r.walk(x.X)
		r.walk(x.Index)
	case *ast.IndexListExpr:
		r.walk(x.X)
		for _, idx := range x.Indices {
			r.walk(idx)
		}
	case *ast.BinaryExpr:
		// Type-set unions inside inline interfaces: ~int | string.
		if x.Op.String() == "|" {
			r.walk(x.X)
			r.walk(x.Y)
			return
		}
		r.bad = append(r.bad, fmt.Sprintf("%s is not a type", types.ExprString(x)))
	case *ast.UnaryExpr:
		if x.Op.String() == "~" {
			r.walk(x.X)
			return
		}
		r.bad = append(r.bad, fmt.Sprintf("%s is not a type", types.ExprString(x)))
	default:
		r.bad = append(r.bad, fmt.Sprintf("%s is not a type", types.ExprString(expr)))
	}
}

func (r *resolver) fieldList(fl *ast.FieldList) {
	if fl == nil {
		return
	}
	for _, f := range fl.List {
		r.walk(f.Type)
	}
}

func isPredeclaredType(name string) bool {
	_, ok := types.Universe.Lookup(name).(*types.TypeName)
	return ok
}

// valueKinds are predeclared types whose assignment copies the whole value.
var valueKinds = map[string]bool{
	"bool": true, "string": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"byte": true, "rune": true,
}

// isValueKind reports whether expr names a predeclared scalar type.
func isValueKind(expr ast.Expr) bool {
	id, ok := expr.(*ast.Ident)
	return ok && valueKinds[id.Name]
}
