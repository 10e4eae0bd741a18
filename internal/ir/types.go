package ir

import "fmt"

// Duplication says how an independent copy of a value is produced.
type Duplication string

const (
	// DupNone marks a type that cannot be duplicated.
	DupNone Duplication = ""

	// DupValue marks a type whose assignment already yields an independent
	// copy. The schema author asserts the type has value semantics.
	DupValue Duplication = "value"

	// DupClone marks a type with a method Clone() T.
	DupClone Duplication = "clone"
)

// ParseDuplication parses a duplication mode. "none" and "" both map to DupNone.
func ParseDuplication(s string) (Duplication, bool) {
	switch s {
	case "", "none":
		return DupNone, true
	case string(DupValue):
		return DupValue, true
	case string(DupClone):
		return DupClone, true
	default:
		return DupNone, false
	}
}

// Duplicable reports whether values can be duplicated at all.
func (d Duplication) Duplicable() bool {
	return d == DupValue || d == DupClone
}

func (d Duplication) String() string {
	if d == DupNone {
		return "none"
	}
	return string(d)
}

// Position is a source location of a declaration.
type Position struct {
	Filename string `json:"filename,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return p.Filename
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Import is an import spec needed by the generated file because a field type
// refers to it.
type Import struct {
	Name string `json:"name,omitempty"` // explicit alias, empty for the default name
	Path string `json:"path"`
}

// RecordSchema is the normalized description of one record type.
type RecordSchema struct {
	Name        string            `json:"name"`
	Package     string            `json:"package"`
	Fields      []FieldDescriptor `json:"fields"`
	Duplication Duplication       `json:"duplication,omitempty"`
	Init        string            `json:"init,omitempty"` // constructor func, empty for the zero value
	FieldsOnly  bool              `json:"fields_only,omitempty"` // selector tokens only, no store
	Imports     []Import          `json:"imports,omitempty"`
	Pos         Position          `json:"-"`
}

// FieldDescriptor is one field of a RecordSchema.
type FieldDescriptor struct {
	Name        string      `json:"name"`
	TypeName    string      `json:"type"` // Go type expression, e.g. "[]string"
	Duplication Duplication `json:"duplication,omitempty"`
	Pos         Position    `json:"-"`
}

// Duplicable reports whether the record as a whole can be duplicated.
func (s *RecordSchema) Duplicable() bool {
	return s.Duplication.Duplicable()
}

// AnyFieldDuplicable reports whether at least one field can be duplicated.
func (s *RecordSchema) AnyFieldDuplicable() bool {
	for _, f := range s.Fields {
		if f.Duplicable() {
			return true
		}
	}
	return false
}

// Field looks up a field by name.
func (s *RecordSchema) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Duplicable reports whether values of the field's type can be duplicated.
func (f FieldDescriptor) Duplicable() bool {
	return f.Duplication.Duplicable()
}
