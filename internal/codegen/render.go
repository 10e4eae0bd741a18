package codegen

import (
	"go/ast"
	"go/parser"

	"github.com/roach88/cellgen/internal/ir"
	"github.com/roach88/cellgen/internal/naming"
)

// selectorView is the template data of one selector token.
type selectorView struct {
	Record     string
	Field      string
	Name       string
	Type       string
	Duplicable bool
	Clone      bool
}

// recordView is the template data of a record's singleton and accessors.
type recordView struct {
	Record string
	Init   string
	Clone  bool
	Plan   *naming.Plan

	// T and U name the accessors' type parameters.
	T, U string
}

// renderRecord renders every declaration of one record: the singleton, one
// token and binding per field, then the accessors. Accessors that need a
// duplicable record or field are left out when that capability is missing,
// and a fields-only record gets the tokens alone.
func renderRecord(s *ir.RecordSchema, plan *naming.Plan) ([]Decl, error) {
	t, u := typeParams(s)
	rv := recordView{
		Record: s.Name,
		Init:   s.Init,
		Clone:  s.Duplication == ir.DupClone,
		Plan:   plan,
		T:      t,
		U:      u,
	}

	var decls []Decl
	emit := func(kind DeclKind, name, tmpl string, data any) error {
		src, err := execute(tmpl, data)
		if err != nil {
			return err
		}
		decls = append(decls, Decl{Kind: kind, Record: s.Name, Name: name, Source: src})
		return nil
	}

	if plan.Singleton != "" {
		if err := emit(KindSingleton, plan.Singleton, "singleton", rv); err != nil {
			return nil, err
		}
	}

	for _, f := range s.Fields {
		sv := selectorView{
			Record:     s.Name,
			Field:      f.Name,
			Name:       plan.Selectors[f.Name],
			Type:       f.TypeName,
			Duplicable: f.Duplicable(),
			Clone:      f.Duplication == ir.DupClone,
		}
		if err := emit(KindSelector, sv.Name, "selector", sv); err != nil {
			return nil, err
		}
		if err := emit(KindBinding, sv.Name, "binding", sv); err != nil {
			return nil, err
		}
	}

	accessors := []struct {
		name string
		tmpl string
	}{
		{plan.New, "new"},
		{plan.Read, "read"},
		{plan.Write, "write"},
		{plan.SelectRef, "selectRef"},
		{plan.Get, "get"},
		{plan.Set, "set"},
		{plan.Select, "select"},
		{plan.Clone, "clone"},
		{plan.Update, "update"},
		{plan.UpdateCtx, "updateAsync"},
		{plan.Duplicate, "dup"},
	}
	for _, a := range accessors {
		// The plan leaves the name empty for accessors that must not exist.
		if a.name == "" {
			continue
		}
		if err := emit(KindAccessor, a.name, a.tmpl, rv); err != nil {
			return nil, err
		}
	}
	return decls, nil
}

// typeParams picks names for the accessors' type parameters that do not
// shadow the record or any identifier used in a field type.
func typeParams(s *ir.RecordSchema) (string, string) {
	used := map[string]bool{s.Name: true}
	for _, f := range s.Fields {
		expr, err := parser.ParseExpr(f.TypeName)
		if err != nil {
			continue
		}
		ast.Inspect(expr, func(n ast.Node) bool {
			if id, ok := n.(*ast.Ident); ok {
				used[id.Name] = true
			}
			return true
		})
	}

	pick := func(base string) string {
		name := base
		for used[name] {
			name += "_"
		}
		used[name] = true
		return name
	}
	return pick("T"), pick("U")
}
