package codegen

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/roach88/cellgen/internal/ir"
)

// DeclKind classifies a generated top-level declaration.
type DeclKind string

const (
	KindSingleton DeclKind = "singleton"
	KindSelector  DeclKind = "selector"
	KindBinding   DeclKind = "binding"
	KindAccessor  DeclKind = "accessor"
)

// Decl is one generated top-level declaration. A selector Decl holds the
// token type together with its methods.
type Decl struct {
	Kind   DeclKind `json:"kind"`
	Record string   `json:"record"`
	Name   string   `json:"name"`
	Source string   `json:"-"`
}

// Unit is one generated Go file.
type Unit struct {
	Package     string      `json:"package"`
	Fingerprint string      `json:"fingerprint"`
	Imports     []ir.Import `json:"imports"`
	Records     []string    `json:"records"` // record names in input order
	Decls       []Decl      `json:"decls"`

	// Source is the formatted file contents.
	Source []byte `json:"-"`
}

// Names returns the names of the record's declarations of the given kind, in
// emission order. An empty record matches every record.
func (u *Unit) Names(record string, kind DeclKind) []string {
	var out []string
	for _, d := range u.Decls {
		if d.Kind == kind && (record == "" || d.Record == record) {
			out = append(out, d.Name)
		}
	}
	return out
}

// Singleton returns the record's singleton variable, or "" for a
// fields-only record.
func (u *Unit) Singleton(record string) string {
	if names := u.Names(record, KindSingleton); len(names) > 0 {
		return names[0]
	}
	return ""
}

// Decl returns the declaration called name.
func (u *Unit) Decl(name string) (Decl, bool) {
	for _, d := range u.Decls {
		if d.Name == name {
			return d, true
		}
	}
	return Decl{}, false
}

// FingerprintPrefix starts the header line carrying the schema fingerprint.
const FingerprintPrefix = "// cellgen:fingerprint "

// ReadFingerprint returns the fingerprint recorded in the header of a
// generated file. Only the comment lines before the package clause are
// searched.
func ReadFingerprint(src []byte) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if fp, ok := strings.CutPrefix(line, FingerprintPrefix); ok {
			return strings.TrimSpace(fp), true
		}
		if line != "" && !strings.HasPrefix(line, "//") {
			return "", false
		}
	}
	return "", false
}
