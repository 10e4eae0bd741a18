package testutil

// FixedTraceID returns the same trace ID every time.
//
// JSON responses stamped with it are byte-identical between runs, so CLI
// output can be compared exactly.
//
// Thread-safety: FixedTraceID is stateless and safe for concurrent use.
type FixedTraceID struct {
	id string
}

// NewFixedTraceID creates a fixed trace ID source. If id is empty,
// Generate returns "test-trace-default".
func NewFixedTraceID(id string) *FixedTraceID {
	if id == "" {
		id = "test-trace-default"
	}
	return &FixedTraceID{id: id}
}

// Generate returns the fixed trace ID.
func (g *FixedTraceID) Generate() string {
	return g.id
}
