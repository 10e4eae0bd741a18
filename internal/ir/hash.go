package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSchema separates schema fingerprints from any other hash of the same
// bytes. The version suffix allows the algorithm to change later.
const DomainSchema = "cellgen/schema/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalMap converts a schema to the generic form used for canonical JSON.
// Every key is always present so the encoding does not depend on omitempty.
func (s *RecordSchema) CanonicalMap() map[string]any {
	fields := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = map[string]any{
			"name":        f.Name,
			"type":        f.TypeName,
			"duplication": f.Duplication.String(),
		}
	}
	imports := make([]any, len(s.Imports))
	for i, imp := range s.Imports {
		imports[i] = map[string]any{
			"name": imp.Name,
			"path": imp.Path,
		}
	}
	return map[string]any{
		"name":        s.Name,
		"package":     s.Package,
		"duplication": s.Duplication.String(),
		"init":        s.Init,
		"fields_only": s.FieldsOnly,
		"fields":      fields,
		"imports":     imports,
	}
}

// Fingerprint computes the content-addressed identity of a set of schemas
// plus the runtime import path the generated code binds to and the generator
// version. Equal inputs always produce the same fingerprint; any change to a
// name, type, duplicability flag or order changes it, and so does a new
// generator release.
func Fingerprint(runtimeImport string, schemas ...*RecordSchema) (string, error) {
	return fingerprint(GeneratorVersion, runtimeImport, schemas)
}

func fingerprint(generator, runtimeImport string, schemas []*RecordSchema) (string, error) {
	records := make([]any, len(schemas))
	for i, s := range schemas {
		records[i] = s.CanonicalMap()
	}
	obj := map[string]any{
		"version":   SchemaVersion,
		"generator": generator,
		"runtime":   runtimeImport,
		"records":   records,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return "sha256:" + hashWithDomain(DomainSchema, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(runtimeImport string, schemas ...*RecordSchema) string {
	fp, err := Fingerprint(runtimeImport, schemas...)
	if err != nil {
		panic(err)
	}
	return fp
}
