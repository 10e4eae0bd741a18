// Package ir defines the normalized record schema that every cellgen
// front-end produces and every generator stage consumes.
//
// This package contains type definitions, schema errors and the canonical
// fingerprint only. All other internal packages import ir; ir imports
// nothing internal.
//
// Key design constraints:
//   - A RecordSchema is built once per generation run and not mutated after
//     validation
//   - Field order is declaration order and is significant for output
//   - Duplicability is explicit per record and per field, never inferred
//     from one another
package ir
