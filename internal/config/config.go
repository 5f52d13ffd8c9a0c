// Package config loads the mpcgraph configuration file.
//
// The file is YAML and every key is optional:
//
//	parties: 3
//	triple_source: dealer
//	seed: "fixture"
//	parallelism: 4
//	store: runs.db
//	log_level: debug
//	shared_inputs: [alice]
//
// Unknown keys are rejected. Command-line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/ir"
)

// Config is the resolved configuration.
type Config struct {
	// Parties is the party count used by compile and simulate.
	Parties int `yaml:"parties"`

	// TripleSource is "dealer" or "none".
	TripleSource string `yaml:"triple_source"`

	// Seed makes key and triple generation deterministic. Empty means
	// fresh randomness for every run.
	Seed string `yaml:"seed"`

	// Parallelism is the evaluator worker count.
	Parallelism int `yaml:"parallelism"`

	// Store is the SQLite database that records runs. Empty disables
	// recording.
	Store string `yaml:"store"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// SharedInputs names main graph inputs that simulate deals out as
	// additive shares instead of sharing them inside the protocol.
	SharedInputs []string `yaml:"shared_inputs"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Parties:      2,
		TripleSource: compiler.TriplesDealer,
		Parallelism:  1,
		LogLevel:     "info",
	}
}

// Error is a configuration failure. Its code is always
// INVALID_CONFIGURATION.
type Error struct {
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, ir.ErrCodeInvalidConfiguration, e.Message)
	}
	return fmt.Sprintf("%s: %s", ir.ErrCodeInvalidConfiguration, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode implements ir.Coded.
func (e *Error) ErrorCode() ir.ErrorCode { return ir.ErrCodeInvalidConfiguration }

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Path: path, Message: "cannot read config file", Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &Error{Message: err.Error(), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.Parties < 2 {
		return &Error{Message: fmt.Sprintf("parties must be at least 2, got %d", c.Parties)}
	}
	switch c.TripleSource {
	case compiler.TriplesDealer, compiler.TriplesNone:
	default:
		return &Error{Message: fmt.Sprintf("triple_source must be %q or %q, got %q",
			compiler.TriplesDealer, compiler.TriplesNone, c.TripleSource)}
	}
	if c.Parallelism < 1 {
		return &Error{Message: fmt.Sprintf("parallelism must be positive, got %d", c.Parallelism)}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &Error{Message: fmt.Sprintf("unknown log_level %q", c.LogLevel)}
	}
	return nil
}

// Compiler returns the compiler configuration.
func (c Config) Compiler() compiler.Config {
	return compiler.Config{Parties: c.Parties, TripleSource: c.TripleSource, SharedInputs: c.SharedInputs}
}
