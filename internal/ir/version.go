package ir

// Version constants for the schema IR and generator.
const (
	// SchemaVersion is folded into every fingerprint.
	SchemaVersion = "1"

	// GeneratorVersion is the cellgen version.
	GeneratorVersion = "0.1.0"
)
