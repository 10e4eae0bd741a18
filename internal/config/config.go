// Package config loads the optional .cellgen.yaml project file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cellgen/internal/naming"
)

// FileName is the config file looked up next to the inputs.
const FileName = ".cellgen.yaml"

// DefaultWatchDebounce coalesces bursts of file events in watch mode.
const DefaultWatchDebounce = 250 * time.Millisecond

// Config holds generator settings. Command-line flags override every field.
type Config struct {
	// RuntimeImport is the import path of the cell runtime package.
	RuntimeImport string `yaml:"runtime_import"`

	// Output is the generated file path. Relative paths resolve against the
	// input package directory. Empty means <package>_cell.go.
	Output string `yaml:"output"`

	// InferValueFields marks untagged scalar fields as value-duplicable.
	InferValueFields bool `yaml:"infer_value_fields"`

	// Types restricts generation to the named records. Empty means every
	// record carrying the store directive.
	Types []string `yaml:"types"`

	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{WatchDebounce: DefaultWatchDebounce}
}

// Load reads the config file at path. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config %s: %w", path, err)
	}
	cfg.Path = path

	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = DefaultWatchDebounce
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the path of the config file in dir, or "" when there is none.
func Find(dir string) string {
	path := filepath.Join(dir, FileName)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}

// Resolve loads explicit when set, otherwise the config file in dir if one
// exists, otherwise the defaults.
func Resolve(explicit, dir string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if path := Find(dir); path != "" {
		return Load(path)
	}
	return Default(), nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var problems []string
	if c.WatchDebounce < 0 {
		problems = append(problems, "watch_debounce must not be negative")
	}
	if c.Output != "" && !strings.HasSuffix(c.Output, ".go") {
		problems = append(problems, fmt.Sprintf("output %q must be a .go file", c.Output))
	}
	if strings.HasSuffix(c.Output, "_test.go") {
		problems = append(problems, fmt.Sprintf("output %q must not be a test file", c.Output))
	}
	for _, t := range c.Types {
		if !naming.IsIdentifier(t) {
			problems = append(problems, fmt.Sprintf("types: %q is not a Go identifier", t))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
