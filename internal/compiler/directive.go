package compiler

import (
	"fmt"
	"go/ast"
	"strings"

	"github.com/roach88/cellgen/internal/ir"
	"github.com/roach88/cellgen/internal/naming"
)

// Directive marks a struct type for generation:
//
//	//cell:store [value|clone|none] [init=<func>]
const Directive = "//cell:store"

// FieldsDirective marks a struct type for selector tokens only, with no
// store or accessors. It takes no arguments.
const FieldsDirective = "//cell:fields"

type directive struct {
	dup      ir.Duplication
	init     string
	explicit bool // a duplication mode was written out
}

// findDirective returns the //cell:store arguments from a declaration's doc
// comment.
func findDirective(doc *ast.CommentGroup) (string, bool) {
	return findComment(doc, Directive)
}

// findFieldsDirective returns the //cell:fields arguments.
func findFieldsDirective(doc *ast.CommentGroup) (string, bool) {
	return findComment(doc, FieldsDirective)
}

func findComment(doc *ast.CommentGroup, prefix string) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, c := range doc.List {
		rest, ok := strings.CutPrefix(c.Text, prefix)
		if !ok {
			continue
		}
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func parseDirective(args string) (directive, error) {
	var d directive
	for _, tok := range strings.Fields(args) {
		if fn, ok := strings.CutPrefix(tok, "init="); ok {
			if !naming.IsIdentifier(fn) {
				return d, fmt.Errorf("init %q is not a Go identifier", fn)
			}
			d.init = fn
			continue
		}
		dup, ok := ir.ParseDuplication(tok)
		if !ok || tok == "" {
			return d, fmt.Errorf("unknown %s argument %q", Directive, tok)
		}
		if d.explicit {
			return d, fmt.Errorf("duplication given twice in %s", Directive)
		}
		d.dup = dup
		d.explicit = true
	}
	return d, nil
}
