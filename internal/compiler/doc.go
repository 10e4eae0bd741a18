// Package compiler turns record declarations into validated ir.RecordSchema
// values.
//
// Two front-ends are supported:
//   - Go source: a struct type declared in a package directory, annotated with
//     a //cell:store directive and `cell:"..."` field tags
//   - CUE: a `record:` struct describing an existing Go type
//
// Both run Validate before returning, so a schema that comes out of this
// package is complete and internally consistent. Errors are ir.SchemaError
// values carrying source positions.
package compiler
