// Package codegen renders record schemas into Go source.
//
// For every record it emits a lazily initialized singleton backed by
// pkg/cell, one zero-size selector token per field and the accessor
// functions. Accessors that need an independent copy of a value (Clone,
// Update, Select) are only emitted when the record or a field can be
// duplicated, so misuse fails to compile instead of failing at run time.
//
// Generation is all-or-nothing: Generate either returns a complete,
// gofmt-formatted unit or an error and no source.
package codegen
