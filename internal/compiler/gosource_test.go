package compiler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellgen/internal/ir"
	"github.com/roach88/cellgen/internal/testutil"
)

func loadAndExtract(t *testing.T, src, name string, opts Options) (*ir.RecordSchema, error) {
	t.Helper()
	dir := testutil.WriteFiles(t, map[string]string{"state.go": src})
	pkg, err := LoadPackage(dir)
	require.NoError(t, err)
	return pkg.Extract(name, opts)
}

func TestExtract_CounterRecord(t *testing.T) {
	src := `package counter

// Counter is shared state.
//
//cell:store value
type Counter struct {
	Name  string ` + "`cell:\"value\"`" + `
	Count int    ` + "`cell:\"value\"`" + `
	Tags  []string
}
`
	schema, err := loadAndExtract(t, src, "Counter", Options{})
	require.NoError(t, err)

	assert.Equal(t, "Counter", schema.Name)
	assert.Equal(t, "counter", schema.Package)
	assert.Equal(t, ir.DupValue, schema.Duplication)
	assert.Empty(t, schema.Imports)
	require.Len(t, schema.Fields, 3)

	assert.Equal(t, "Name", schema.Fields[0].Name)
	assert.Equal(t, "string", schema.Fields[0].TypeName)
	assert.Equal(t, ir.DupValue, schema.Fields[0].Duplication)

	assert.Equal(t, "Count", schema.Fields[1].Name)
	assert.Equal(t, ir.DupValue, schema.Fields[1].Duplication)

	assert.Equal(t, "Tags", schema.Fields[2].Name)
	assert.Equal(t, "[]string", schema.Fields[2].TypeName)
	assert.Equal(t, ir.DupNone, schema.Fields[2].Duplication)

	assert.Equal(t, 6, schema.Pos.Line)
	assert.Equal(t, 7, schema.Fields[0].Pos.Line)
}

func TestExtract_FieldDuplicabilityIsIndependentOfRecord(t *testing.T) {
	src := `package p

//cell:store
type Settings struct {
	Limit int ` + "`cell:\"value\"`" + `
	Hook  func()
}
`
	schema, err := loadAndExtract(t, src, "Settings", Options{})
	require.NoError(t, err)

	assert.False(t, schema.Duplicable())
	assert.True(t, schema.Fields[0].Duplicable())
	assert.False(t, schema.Fields[1].Duplicable())
}

func TestExtract_CloneMethodMarksRecordDuplicable(t *testing.T) {
	src := `package p

type Doc struct {
	Lines []string
}

func (d Doc) Clone() Doc {
	return Doc{Lines: append([]string(nil), d.Lines...)}
}
`
	schema, err := loadAndExtract(t, src, "Doc", Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.DupClone, schema.Duplication)
}

func TestExtract_ExplicitNoneOverridesCloneMethod(t *testing.T) {
	src := `package p

//cell:store none
type Doc struct {
	Lines []string
}

func (d *Doc) Clone() Doc { return *d }
`
	schema, err := loadAndExtract(t, src, "Doc", Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.DupNone, schema.Duplication)
}

func TestExtract_InitFunction(t *testing.T) {
	src := `package p

//cell:store value init=defaultConfig
type Config struct {
	Port int
}

func defaultConfig() Config { return Config{Port: 8080} }
`
	schema, err := loadAndExtract(t, src, "Config", Options{})
	require.NoError(t, err)
	assert.Equal(t, "defaultConfig", schema.Init)

	missing := `package p

//cell:store init=nowhere
type Config struct {
	Port int
}
`
	_, err = loadAndExtract(t, missing, "Config", Options{})
	require.Error(t, err)
	assert.Equal(t, ir.ErrCodeInvalidInit, ir.AsSchemaErrors(err)[0].Code)
}

func TestExtract_InferValueFields(t *testing.T) {
	src := `package p

type R struct {
	A int
	B string
	C []int
	D *int
	E bool ` + "`cell:\"none\"`" + `
}
`
	schema, err := loadAndExtract(t, src, "R", Options{InferValueFields: true})
	require.NoError(t, err)

	got := map[string]ir.Duplication{}
	for _, f := range schema.Fields {
		got[f.Name] = f.Duplication
	}
	assert.Equal(t, map[string]ir.Duplication{
		"A": ir.DupValue,
		"B": ir.DupValue,
		"C": ir.DupNone,
		"D": ir.DupNone,
		"E": ir.DupNone,
	}, got)

	schema, err = loadAndExtract(t, src, "R", Options{})
	require.NoError(t, err)
	assert.False(t, schema.AnyFieldDuplicable(), "inference is opt-in")
}

func TestExtract_FieldShapes(t *testing.T) {
	src := `package p

import (
	"sync"
	"time"
	yml "gopkg.in/yaml.v3"
)

type Base struct{}

type R struct {
	Base
	*sync.Mutex
	_       int
	A, B    int
	When    time.Time
	Node    yml.Node
	Skipped chan int ` + "`cell:\"-\"`" + `
}
`
	schema, err := loadAndExtract(t, src, "R", Options{})
	require.NoError(t, err)

	var names []string
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Base", "Mutex", "A", "B", "When", "Node"}, names)
	assert.Equal(t, "*sync.Mutex", schema.Fields[1].TypeName)

	assert.Equal(t, []ir.Import{
		{Name: "yml", Path: "gopkg.in/yaml.v3"},
		{Path: "sync"},
		{Path: "time"},
	}, schema.Imports)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		record   string
		wantCode string
	}{
		{
			name:     "missing type",
			src:      "package p\n\ntype Other struct{}\n",
			record:   "R",
			wantCode: ir.ErrCodeRecordNotFound,
		},
		{
			name:     "interface is a sum type",
			src:      "package p\n\ntype R interface{ isR() }\n",
			record:   "R",
			wantCode: ir.ErrCodeNotAggregate,
		},
		{
			name:     "defined non-struct",
			src:      "package p\n\ntype R []int\n",
			record:   "R",
			wantCode: ir.ErrCodeNotAggregate,
		},
		{
			name:     "alias",
			src:      "package p\n\ntype S struct{}\n\ntype R = S\n",
			record:   "R",
			wantCode: ir.ErrCodeNotAggregate,
		},
		{
			name:     "generic",
			src:      "package p\n\ntype R[T any] struct{ V T }\n",
			record:   "R",
			wantCode: ir.ErrCodeGenericRecord,
		},
		{
			name:     "unresolved local type",
			src:      "package p\n\ntype R struct{ V Missing }\n",
			record:   "R",
			wantCode: ir.ErrCodeUnresolvedType,
		},
		{
			name:     "unimported package",
			src:      "package p\n\ntype R struct{ V time.Time }\n",
			record:   "R",
			wantCode: ir.ErrCodeUnresolvedType,
		},
		{
			name:     "duplicate field",
			src:      "package p\n\ntype R struct {\n\tA int\n\tA string\n}\n",
			record:   "R",
			wantCode: ir.ErrCodeDuplicateField,
		},
		{
			name:     "bad tag",
			src:      "package p\n\ntype R struct {\n\tA int `cell:\"deep\"`\n}\n",
			record:   "R",
			wantCode: ir.ErrCodeInvalidDup,
		},
		{
			name:     "bad directive",
			src:      "package p\n\n//cell:store sometimes\ntype R struct{}\n",
			record:   "R",
			wantCode: ir.ErrCodeInvalidDirective,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := loadAndExtract(t, tt.src, tt.record, Options{})
			require.Error(t, err)
			assert.Nil(t, schema, "extraction is all-or-nothing")

			errs := ir.AsSchemaErrors(err)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.wantCode, errs[0].Code)
		})
	}
}

func TestLoadPackage_SkipsTestsAndOwnOutput(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"state.go":      "package p\n\n//cell:store value\ntype R struct{ A int }\n\nfunc helper() {}\n",
		"state_test.go": "package p\n\nfunc TestOnly() {}\n",
		"p_cell.go":     "// Code generated by cellgen. DO NOT EDIT.\n\npackage p\n\nfunc NewR() R { return R{} }\n",
		"notes.txt":     "not go",
	})

	pkg, err := LoadPackage(filepath.Join(dir, "state.go"))
	require.NoError(t, err)

	assert.Equal(t, "p", pkg.Name)
	assert.Len(t, pkg.Files, 1)
	assert.True(t, pkg.Symbols["R"])
	assert.True(t, pkg.Symbols["helper"])
	assert.False(t, pkg.Symbols["TestOnly"])
	assert.False(t, pkg.Symbols["NewR"], "previous cellgen output must not reserve names")
	assert.True(t, pkg.HasType("R"))
}

func TestLoadPackage_Errors(t *testing.T) {
	_, err := LoadPackage(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := testutil.WriteFiles(t, map[string]string{"a.go": "package a\n", "b.go": "package b\n"})
	_, err = LoadPackage(dir)
	require.Error(t, err)
	assert.True(t, ir.IsSchemaError(err))

	dir = testutil.WriteFiles(t, map[string]string{"a.go": "package a\n\nfunc {"})
	_, err = LoadPackage(dir)
	require.Error(t, err)
	assert.Equal(t, ir.ErrCodeParse, ir.AsSchemaErrors(err)[0].Code)

	_, err = LoadPackage(t.TempDir())
	assert.Error(t, err, "empty directory has no package")
}

func TestDiscover(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"a.go": "package p\n\n//cell:store\ntype Zeta struct{}\n\ntype Plain struct{}\n",
		"b.go": "package p\n\ntype (\n\t// Alpha is grouped.\n\t//cell:store value\n\tAlpha struct{ N int }\n)\n",
	})

	pkg, err := LoadPackage(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zeta", "Alpha"}, pkg.Discover())
}

func TestExtract_SamePathImportedUnderTwoNames(t *testing.T) {
	src := `package p

import (
	"time"
	tm "time"
)

//cell:store
type Clock struct {
	Now  time.Time
	Zone *tm.Location
}
`
	schema, err := loadAndExtract(t, src, "Clock", Options{})
	require.NoError(t, err)

	assert.Equal(t, []ir.Import{{Path: "time"}, {Name: "tm", Path: "time"}}, schema.Imports,
		"both names the field types use are kept")
}

func TestExtract_FieldsDirective(t *testing.T) {
	src := `package p

//cell:fields
type Point struct {
	X int ` + "`cell:\"value\"`" + `
	Y int
}

func (p Point) Clone() Point { return p }
`
	schema, err := loadAndExtract(t, src, "Point", Options{})
	require.NoError(t, err)

	assert.True(t, schema.FieldsOnly)
	assert.Equal(t, ir.DupNone, schema.Duplication, "a Clone method does not matter without a store")
	require.Len(t, schema.Fields, 2)
	assert.Equal(t, ir.DupValue, schema.Fields[0].Duplication)
}

func TestExtract_FieldsDirectiveErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"arguments", "//cell:fields value"},
		{"combined with store", "//cell:fields\n//cell:store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package p\n\n" + tt.doc + "\ntype Point struct{ X int }\n"
			_, err := loadAndExtract(t, src, "Point", Options{})
			require.Error(t, err)
			assert.Equal(t, ir.ErrCodeInvalidDirective, ir.AsSchemaErrors(err)[0].Code)
		})
	}
}

func TestDiscover_IncludesFieldsDirective(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"state.go": `package p

//cell:fields
type Point struct{ X int }

//cell:store
type State struct{ P Point }

func newState() State { return State{} }
`})
	pkg, err := LoadPackage(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"Point", "State"}, pkg.Discover())
	assert.True(t, pkg.HasFunc("newState"))
	assert.False(t, pkg.HasFunc("Point"))
}
