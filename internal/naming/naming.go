// Package naming derives the identifiers of generated declarations from a
// record schema. Every function here is pure and deterministic.
package naming

import (
	"fmt"
	"go/token"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/cellgen/internal/ir"
)

// SingletonPrefix is prepended to the record name to form the singleton.
const SingletonPrefix = "cell"

// SelectorSuffix is appended to field names to form selector tokens.
const SelectorSuffix = "Field"

// Pascal converts a name to PascalCase. Underscores, dashes and spaces split
// words; each word gets an upper-case first rune and keeps the rest as is, so
// acronyms survive ("http_URL" becomes "HttpURL", "ID" stays "ID").
func Pascal(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})

	// A Caser is stateful; never share one between goroutines.
	titler := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(titler.String(p))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}

// Singleton returns the identifier of the package-level store variable.
func Singleton(record string) string {
	return SingletonPrefix + Pascal(record)
}

// Selector returns the base identifier of a field's selector token, before
// any collision suffix.
func Selector(field string) string {
	return Pascal(field) + SelectorSuffix
}

// Plan holds every identifier generated for one record. For a fields-only
// record every identifier except the selectors is empty.
type Plan struct {
	Record    string
	Singleton string
	Duplicate string // private duplicator, empty when the record is not duplicable

	New       string
	Read      string
	Write     string
	SelectRef string
	Get       string
	Set       string
	Select    string // empty when no field is duplicable
	Clone     string // empty when the record is not duplicable
	Update    string // empty when the record is not duplicable
	UpdateCtx string // empty when the record is not duplicable

	// Selectors maps field name to selector token identifier.
	Selectors map[string]string
}

// NewPlan computes identifiers for schema. Selector identifiers are made
// unique within the schema, and distinct from the record type, by numbering
// repeats in field order. reserved
// holds symbols already declared by the user's package; if any planned
// identifier is reserved, NewPlan fails with an E210 SchemaError.
func NewPlan(schema *ir.RecordSchema, reserved map[string]bool) (*Plan, error) {
	r := Pascal(schema.Name)
	p := &Plan{
		Record:    schema.Name,
		Selectors: make(map[string]string, len(schema.Fields)),
	}
	if !schema.FieldsOnly {
		p.Singleton = Singleton(schema.Name)
		p.New = "New" + r
		p.Read = "Read" + r
		p.Write = "Write" + r
		p.SelectRef = "Select" + r + "Ref"
		p.Get = "Get" + r
		p.Set = "Set" + r
	}
	if !schema.FieldsOnly && schema.AnyFieldDuplicable() {
		p.Select = "Select" + r
	}
	if !schema.FieldsOnly && schema.Duplicable() {
		p.Duplicate = "dup" + r
		p.Clone = "Clone" + r
		p.Update = "Update" + r
		p.UpdateCtx = "Update" + r + "Async"
	}

	taken := map[string]bool{schema.Name: true}
	for _, id := range p.Identifiers() {
		taken[id] = true
	}
	for _, f := range schema.Fields {
		p.Selectors[f.Name] = uniqueName(Selector(f.Name), taken)
	}

	var errs ir.SchemaErrors
	for _, id := range p.Identifiers() {
		if reserved[id] {
			errs = append(errs, &ir.SchemaError{
				Code:    ir.ErrCodeSymbolCollision,
				Record:  schema.Name,
				Message: fmt.Sprintf("generated identifier %s is already declared in package %s", id, schema.Package),
				Pos:     schema.Pos,
			})
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// uniqueName returns base, or base followed by the smallest number >= 2 that
// is not taken, and marks the result taken.
func uniqueName(base string, taken map[string]bool) string {
	name := base
	for n := 2; taken[name]; n++ {
		name = base + strconv.Itoa(n)
	}
	taken[name] = true
	return name
}

// Identifiers lists every non-empty identifier in the plan: accessors first,
// then selectors sorted by identifier.
func (p *Plan) Identifiers() []string {
	ids := make([]string, 0, 12+len(p.Selectors))
	for _, id := range []string{
		p.Singleton, p.Duplicate, p.New, p.Read, p.Write, p.SelectRef,
		p.Get, p.Set, p.Select, p.Clone, p.Update, p.UpdateCtx,
	} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sel := make([]string, 0, len(p.Selectors))
	for _, id := range p.Selectors {
		sel = append(sel, id)
	}
	slices.Sort(sel)
	return append(ids, sel...)
}

// IsIdentifier reports whether name is a valid, non-keyword Go identifier.
func IsIdentifier(name string) bool {
	return token.IsIdentifier(name)
}
