package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFiles writes files, keyed by slash-separated relative path, into a
// fresh temp dir and returns the dir.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// CounterSource is a Go package file declaring a store-marked record with
// two value-duplicable fields.
const CounterSource = `package counter

// Counter is shared state.
//
//cell:store value
type Counter struct {
	Name  string ` + "`cell:\"value\"`" + `
	Count int    ` + "`cell:\"value\"`" + `
}
`

// CounterCUE declares the same record as CounterSource in CUE.
const CounterCUE = `record: Counter: {
	go_package:  "counter"
	duplication: "value"
	fields: {
		Name:  {type: "string", duplication: "value"}
		Count: {type: "int", duplication: "value"}
	}
}
`
