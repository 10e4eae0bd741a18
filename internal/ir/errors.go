package ir

import (
	"errors"
	"fmt"
	"strings"
)

// Schema error codes (E200-E299).
const (
	ErrCodeParse             = "E200" // source could not be parsed
	ErrCodeRecordNotFound    = "E201" // record type not declared
	ErrCodeNotAggregate      = "E202" // declaration is not a plain struct
	ErrCodeUnresolvedType    = "E203" // field type cannot be resolved
	ErrCodeDuplicateField    = "E204" // two fields share a name
	ErrCodeInvalidIdentifier = "E205" // name is not a Go identifier
	ErrCodeEmptyType         = "E206" // field has no type
	ErrCodeInvalidDup        = "E207" // unknown duplication mode
	ErrCodeInvalidDirective  = "E208" // malformed //cell:store directive
	ErrCodeGenericRecord     = "E209" // record has type parameters
	ErrCodeSymbolCollision   = "E210" // generated identifier shadows a user symbol
	ErrCodeUnitCollision     = "E211" // two records in one unit produce the same identifier
	ErrCodeInvalidInit       = "E212" // init function name is invalid
)

// SchemaError is a generation-time error. Any SchemaError aborts generation;
// nothing is emitted.
type SchemaError struct {
	Code    string
	Record  string
	Field   string
	Message string
	Pos     Position
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "[%s] ", e.Code)
	if subject := e.subject(); subject != "" {
		b.WriteString(subject)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *SchemaError) subject() string {
	switch {
	case e.Record != "" && e.Field != "":
		return e.Record + "." + e.Field
	case e.Record != "":
		return e.Record
	default:
		return e.Field
	}
}

// SchemaErrors collects every SchemaError found in one pass.
type SchemaErrors []*SchemaError

func (es SchemaErrors) Error() string {
	switch len(es) {
	case 0:
		return "no schema errors"
	case 1:
		return es[0].Error()
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d schema errors:\n  %s", len(es), strings.Join(msgs, "\n  "))
}

// Err returns nil for an empty list, the list otherwise.
func (es SchemaErrors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// AsSchemaErrors flattens err into its schema errors. Errors that are not
// schema errors are not returned.
func AsSchemaErrors(err error) []*SchemaError {
	var list SchemaErrors
	if errors.As(err, &list) {
		return list
	}
	var single *SchemaError
	if errors.As(err, &single) {
		return []*SchemaError{single}
	}
	return nil
}

// IsSchemaError returns true if err is or wraps a schema error.
func IsSchemaError(err error) bool {
	return len(AsSchemaErrors(err)) > 0
}
