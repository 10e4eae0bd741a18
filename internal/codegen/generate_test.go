package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellgen/internal/ir"
)

func counterSchema() *ir.RecordSchema {
	return &ir.RecordSchema{
		Name:        "Counter",
		Package:     "counter",
		Duplication: ir.DupValue,
		Fields: []ir.FieldDescriptor{
			{Name: "Name", TypeName: "string", Duplication: ir.DupValue},
			{Name: "Count", TypeName: "int", Duplication: ir.DupValue},
		},
	}
}

func settingsSchema() *ir.RecordSchema {
	return &ir.RecordSchema{
		Name:    "Settings",
		Package: "app",
		Init:    "defaultSettings",
		Fields: []ir.FieldDescriptor{
			{Name: "Limit", TypeName: "int", Duplication: ir.DupValue},
			{Name: "Hooks", TypeName: "[]func()"},
			{Name: "Updated", TypeName: "time.Time"},
		},
		Imports: []ir.Import{{Path: "time"}},
	}
}

func documentSchema() *ir.RecordSchema {
	return &ir.RecordSchema{
		Name:        "Document",
		Package:     "docs",
		Duplication: ir.DupClone,
		Fields: []ir.FieldDescriptor{
			{Name: "Lines", TypeName: "[]string"},
		},
	}
}

func TestGenerateGolden(t *testing.T) {
	tests := []struct {
		name   string
		schema *ir.RecordSchema
	}{
		{"counter", counterSchema()},
		{"settings", settingsSchema()},
		{"document", documentSchema()},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := Generate([]*ir.RecordSchema{tt.schema}, Options{})
			require.NoError(t, err)

			data := struct{ Fingerprint string }{unit.Fingerprint}
			g.AssertWithTemplate(t, tt.name, data, unit.Source)
		})
	}
}

// surface is the set of top-level functions and methods of a generated file.
type surface struct {
	funcs   map[string]bool
	methods map[string]bool // "Recv.Method"
	types   map[string]bool
}

func parseSurface(t *testing.T, src []byte) surface {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, 0)
	require.NoError(t, err, "generated code must parse:\n%s", src)

	s := surface{funcs: map[string]bool{}, methods: map[string]bool{}, types: map[string]bool{}}
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				s.funcs[d.Name.Name] = true
				continue
			}
			recv := d.Recv.List[0].Type.(*ast.Ident).Name
			s.methods[recv+"."+d.Name.Name] = true
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					s.types[ts.Name.Name] = true
				}
			}
		}
	}
	return s
}

func TestGenerateDuplicabilityMatrix(t *testing.T) {
	tests := []struct {
		name      string
		recordDup ir.Duplication
		fieldDup  ir.Duplication
	}{
		{"neither", ir.DupNone, ir.DupNone},
		{"field only", ir.DupNone, ir.DupValue},
		{"record only", ir.DupValue, ir.DupNone},
		{"both", ir.DupClone, ir.DupClone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := &ir.RecordSchema{
				Name:        "State",
				Package:     "p",
				Duplication: tt.recordDup,
				Fields: []ir.FieldDescriptor{
					{Name: "Item", TypeName: "Item", Duplication: tt.fieldDup},
					{Name: "Raw", TypeName: "[]byte"},
				},
			}
			unit, err := Generate([]*ir.RecordSchema{schema}, Options{})
			require.NoError(t, err)
			s := parseSurface(t, unit.Source)

			for _, fn := range []string{"NewState", "ReadState", "WriteState", "SelectStateRef", "GetState", "SetState"} {
				assert.True(t, s.funcs[fn], "%s is always emitted", fn)
			}

			recordDup := tt.recordDup.Duplicable()
			assert.Equal(t, recordDup, s.funcs["CloneState"])
			assert.Equal(t, recordDup, s.funcs["UpdateState"])
			assert.Equal(t, recordDup, s.funcs["UpdateStateAsync"])
			assert.Equal(t, recordDup, s.funcs["dupState"])
			assert.Equal(t, recordDup, strings.Contains(string(unit.Source), `"context"`))

			fieldDup := tt.fieldDup.Duplicable()
			assert.Equal(t, fieldDup, s.funcs["SelectState"])
			assert.Equal(t, fieldDup, s.methods["ItemField.Dup"])
			assert.False(t, s.methods["RawField.Dup"])

			binding := "cell.Field[State, Item] = ItemField{}"
			if fieldDup {
				binding = "cell.DupField[State, Item] = ItemField{}"
			}
			assert.Contains(t, string(unit.Source), binding)
		})
	}
}

func TestGenerateOneTokenPerField(t *testing.T) {
	schema := settingsSchema()
	unit, err := Generate([]*ir.RecordSchema{schema}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"LimitField", "HooksField", "UpdatedField"}, unit.Names("Settings", KindSelector))
	assert.Equal(t, []string{"LimitField", "HooksField", "UpdatedField"}, unit.Names("Settings", KindBinding))
	assert.Equal(t, []string{"cellSettings"}, unit.Names("", KindSingleton))

	s := parseSurface(t, unit.Source)
	for _, name := range unit.Names("Settings", KindSelector) {
		assert.True(t, s.types[name])
		assert.True(t, s.methods[name+".Ref"])
		assert.True(t, s.methods[name+".Put"])
	}
	assert.Len(t, s.types, len(schema.Fields))
}

func TestGenerateEmptyRecord(t *testing.T) {
	unit, err := Generate([]*ir.RecordSchema{{Name: "Empty", Package: "p", Duplication: ir.DupValue}}, Options{})
	require.NoError(t, err)

	s := parseSurface(t, unit.Source)
	assert.Empty(t, s.types)
	assert.True(t, s.funcs["UpdateEmpty"])
	assert.False(t, s.funcs["SelectEmpty"])
}

func TestGenerateMultipleRecords(t *testing.T) {
	other := &ir.RecordSchema{
		Name:        "Session",
		Package:     "counter",
		Duplication: ir.DupValue,
		Fields: []ir.FieldDescriptor{
			{Name: "Started", TypeName: "time.Time", Duplication: ir.DupValue},
		},
		Imports: []ir.Import{{Path: "time"}},
	}

	unit, err := Generate([]*ir.RecordSchema{counterSchema(), other}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []ir.Import{
		{Path: "context"},
		{Path: "github.com/roach88/cellgen/pkg/cell"},
		{Path: "time"},
	}, unit.Imports)
	assert.Equal(t, 1, strings.Count(string(unit.Source), `"context"`))
	assert.Equal(t, []string{"cellCounter", "cellSession"}, unit.Names("", KindSingleton))

	s := parseSurface(t, unit.Source)
	assert.True(t, s.funcs["UpdateCounter"])
	assert.True(t, s.funcs["UpdateSession"])
	assert.True(t, s.types["StartedField"])

	want := ir.MustFingerprint(DefaultRuntimeImport, counterSchema(), other)
	assert.Equal(t, want, unit.Fingerprint)
}

func TestGenerateRuntimeImport(t *testing.T) {
	unit, err := Generate([]*ir.RecordSchema{documentSchema()}, Options{RuntimeImport: "example.com/store/runtime"})
	require.NoError(t, err)
	assert.Contains(t, string(unit.Source), `cell "example.com/store/runtime"`)

	same, err := Generate([]*ir.RecordSchema{documentSchema()}, Options{RuntimeImport: "example.com/store/cell"})
	require.NoError(t, err)
	assert.Contains(t, string(same.Source), "\t\"example.com/store/cell\"\n")

	def, err := Generate([]*ir.RecordSchema{documentSchema()}, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, def.Fingerprint, unit.Fingerprint, "the runtime is part of the fingerprint")
}

func TestGenerateSingleImport(t *testing.T) {
	schema := &ir.RecordSchema{Name: "Flags", Package: "p", Fields: []ir.FieldDescriptor{{Name: "On", TypeName: "bool"}}}
	unit, err := Generate([]*ir.RecordSchema{schema}, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(unit.Source), "\nimport \"github.com/roach88/cellgen/pkg/cell\"\n")
}

func TestGenerateTypeParamsAvoidFieldTypes(t *testing.T) {
	schema := &ir.RecordSchema{
		Name:    "Box",
		Package: "p",
		Fields: []ir.FieldDescriptor{
			{Name: "Val", TypeName: "T"},
			{Name: "Pair", TypeName: "map[U]T_"},
		},
	}
	unit, err := Generate([]*ir.RecordSchema{schema}, Options{})
	require.NoError(t, err)

	src := string(unit.Source)
	assert.Contains(t, src, "func SelectBoxRef[T__ any](f cell.Field[Box, T__]) (*T__, error)")
	assert.Contains(t, src, "func GetBox[T__, U_ any](")
}

func TestGenerateErrors(t *testing.T) {
	t.Run("no schemas", func(t *testing.T) {
		unit, err := Generate(nil, Options{})
		assert.Error(t, err)
		assert.Nil(t, unit)
	})

	tests := []struct {
		name     string
		schemas  []*ir.RecordSchema
		opts     Options
		wantCode string
	}{
		{
			name:     "reserved accessor",
			schemas:  []*ir.RecordSchema{counterSchema()},
			opts:     Options{Reserved: map[string]bool{"ReadCounter": true}},
			wantCode: ir.ErrCodeSymbolCollision,
		},
		{
			name:     "reserved runtime name",
			schemas:  []*ir.RecordSchema{counterSchema()},
			opts:     Options{Reserved: map[string]bool{"cell": true}},
			wantCode: ir.ErrCodeSymbolCollision,
		},
		{
			name: "selector shared across records",
			schemas: []*ir.RecordSchema{
				counterSchema(),
				{Name: "Label", Package: "counter", Fields: []ir.FieldDescriptor{{Name: "Name", TypeName: "string"}}},
			},
			wantCode: ir.ErrCodeUnitCollision,
		},
		{
			name: "accessor names another record",
			schemas: []*ir.RecordSchema{
				counterSchema(),
				{Name: "ReadCounter", Package: "counter"},
			},
			wantCode: ir.ErrCodeUnitCollision,
		},
		{
			name:     "record twice",
			schemas:  []*ir.RecordSchema{counterSchema(), counterSchema()},
			wantCode: ir.ErrCodeUnitCollision,
		},
		{
			name:     "mixed packages",
			schemas:  []*ir.RecordSchema{counterSchema(), documentSchema()},
			wantCode: ir.ErrCodeUnitCollision,
		},
		{
			name: "conflicting imports",
			schemas: []*ir.RecordSchema{
				{Name: "A", Package: "p", Fields: []ir.FieldDescriptor{{Name: "X", TypeName: "rand.Rand"}}, Imports: []ir.Import{{Path: "math/rand"}}},
				{Name: "B", Package: "p", Fields: []ir.FieldDescriptor{{Name: "Y", TypeName: "rand.Reader"}}, Imports: []ir.Import{{Path: "crypto/rand"}}},
			},
			wantCode: ir.ErrCodeUnitCollision,
		},
		{
			name: "invalid schema",
			schemas: []*ir.RecordSchema{
				{Name: "Bad", Package: "p", Fields: []ir.FieldDescriptor{{Name: "X"}}},
			},
			wantCode: ir.ErrCodeEmptyType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := Generate(tt.schemas, tt.opts)
			require.Error(t, err)
			assert.Nil(t, unit, "no partial output on error")

			errs := ir.AsSchemaErrors(err)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.wantCode, errs[0].Code)
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate([]*ir.RecordSchema{counterSchema(), {Name: "Other", Package: "counter"}}, Options{})
	require.NoError(t, err)
	b, err := Generate([]*ir.RecordSchema{counterSchema(), {Name: "Other", Package: "counter"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Source, b.Source)
}

func TestReadFingerprint(t *testing.T) {
	unit, err := Generate([]*ir.RecordSchema{counterSchema()}, Options{})
	require.NoError(t, err)

	fp, ok := ReadFingerprint(unit.Source)
	require.True(t, ok)
	assert.Equal(t, unit.Fingerprint, fp)
	assert.True(t, strings.HasPrefix(fp, "sha256:"))

	_, ok = ReadFingerprint([]byte("package p\n\n// cellgen:fingerprint sha256:late\n"))
	assert.False(t, ok, "only the header is searched")

	_, ok = ReadFingerprint([]byte("// hand written\npackage p\n"))
	assert.False(t, ok)
}

func TestUnitDecl(t *testing.T) {
	unit, err := Generate([]*ir.RecordSchema{counterSchema()}, Options{})
	require.NoError(t, err)

	d, ok := unit.Decl("UpdateCounterAsync")
	require.True(t, ok)
	assert.Equal(t, KindAccessor, d.Kind)
	assert.Equal(t, "Counter", d.Record)
	assert.True(t, strings.HasPrefix(d.Source, "// UpdateCounterAsync is UpdateCounter"))

	_, ok = unit.Decl("Missing")
	assert.False(t, ok)
}
