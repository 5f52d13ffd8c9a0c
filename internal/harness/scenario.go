package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mpcgraph/internal/applications"
	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/ir"
)

// Scenario defines one conformance run of a program.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the source program to run.
	Program Program `yaml:"program"`

	// Parties is the number of parties to compile for.
	Parties int `yaml:"parties"`

	// Seed derives masks and triples. Scenarios are always deterministic.
	Seed string `yaml:"seed"`

	// TripleSource is passed to the compiler; empty means dealer.
	TripleSource string `yaml:"triple_source,omitempty"`

	// Mode selects how the compiled context runs: "simulate" (default)
	// evaluates all parties in lockstep, "delegated" runs each party
	// concurrently over an in-memory network.
	Mode string `yaml:"mode,omitempty"`

	// Inputs binds main graph inputs by name.
	Inputs map[string]any `yaml:"inputs"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory of the scenario file; program files resolve
	// against it.
	dir string
}

// Program selects a definition file or a catalog application.
type Program struct {
	File string `yaml:"file,omitempty"`

	Application string `yaml:"application,omitempty"`
	Type        string `yaml:"type,omitempty"`
	N           int64  `yaml:"n,omitempty"`
	M           int64  `yaml:"m,omitempty"`
	K           int64  `yaml:"k,omitempty"`
	TransposeA  bool   `yaml:"transpose_a,omitempty"`
	TransposeB  bool   `yaml:"transpose_b,omitempty"`
}

// Assertion validates an aspect of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Index is the output position (output).
	Index int `yaml:"index,omitempty"`

	// Value is the expected literal (output).
	Value any `yaml:"value,omitempty"`

	// Stat names a compilation statistic (stat).
	Stat string `yaml:"stat,omitempty"`

	// Count is an exact expectation (stat, stored_runs).
	Count *int `yaml:"count,omitempty"`

	// Max is an upper bound (stat).
	Max *int `yaml:"max,omitempty"`

	// Code is the expected error code (error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertEquivalent    = "equivalent"
	AssertOutput        = "output"
	AssertStat          = "stat"
	AssertError         = "error"
	AssertDeterministic = "deterministic"
	AssertStoredRuns    = "stored_runs"
)

// Run modes.
const (
	ModeSimulate  = "simulate"
	ModeDelegated = "delegated"
)

// Stat names accepted by stat assertions.
var statNames = []string{"nodes_in", "nodes_out", "graphs", "sends", "triples", "rounds"}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)
	if err := s.checkProgramFile(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Program files resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// ProgramPath returns the program file resolved against the scenario's
// directory, or "" for catalog applications.
func (s *Scenario) ProgramPath() string {
	if s.Program.File == "" {
		return ""
	}
	if filepath.IsAbs(s.Program.File) || s.dir == "" {
		return s.Program.File
	}
	return filepath.Join(s.dir, s.Program.File)
}

func (s *Scenario) checkProgramFile() error {
	path := s.ProgramPath()
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("program file not found: %s", path)
	}
	return nil
}

// mode returns the effective run mode.
func (s *Scenario) mode() string {
	if s.Mode == "" {
		return ModeSimulate
	}
	return s.Mode
}

// tripleSource returns the effective triple source.
func (s *Scenario) tripleSource() string {
	if s.TripleSource == "" {
		return compiler.TriplesDealer
	}
	return s.TripleSource
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Seed == "" {
		return fmt.Errorf("seed is required")
	}
	if s.Parties < 2 {
		return fmt.Errorf("parties must be at least 2, got %d", s.Parties)
	}

	p := s.Program
	switch {
	case p.File == "" && p.Application == "":
		return fmt.Errorf("program needs a file or an application")
	case p.File != "" && p.Application != "":
		return fmt.Errorf("program names both a file and an application")
	case p.Application != "":
		if !slices.Contains(applications.Names(), p.Application) {
			return fmt.Errorf("program: unknown application %q", p.Application)
		}
		if p.Type != "" {
			t, err := ir.ParseType(p.Type)
			if err != nil {
				return fmt.Errorf("program: %w", err)
			}
			if _, ok := t.(ir.ScalarType); !ok {
				return fmt.Errorf("program: element type %s is not a scalar", p.Type)
			}
		}
	case p.Type != "" || p.N != 0 || p.M != 0 || p.K != 0:
		return fmt.Errorf("program: type and sizes apply to applications only")
	}

	switch s.Mode {
	case "", ModeSimulate, ModeDelegated:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	switch s.TripleSource {
	case "", compiler.TriplesDealer, compiler.TriplesNone:
	default:
		return fmt.Errorf("unknown triple source %q", s.TripleSource)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEquivalent, AssertDeterministic:
	case AssertOutput:
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative for output", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for output", index)
		}
	case AssertStat:
		if !slices.Contains(statNames, a.Stat) {
			return fmt.Errorf("assertions[%d]: unknown stat %q", index, a.Stat)
		}
		if (a.Count == nil) == (a.Max == nil) {
			return fmt.Errorf("assertions[%d]: stat needs exactly one of count or max", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	case AssertStoredRuns:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for stored_runs", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
