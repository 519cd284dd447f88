package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: models, seed records and a
// sequence of query/put/delete steps with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Models is an optional CUE file declaring the kinds' unique
	// combinations and list columns. Relative paths resolve against the
	// scenario file's directory.
	Models string `yaml:"models,omitempty"`

	// MaxBranches overrides the branch cap. Zero keeps the default.
	MaxBranches int `yaml:"max_branches,omitempty"`

	// Seed records are written before the steps run, bypassing unique
	// enforcement.
	Seed []RecordDoc `yaml:"seed,omitempty"`

	// Steps run in order against the seeded store.
	Steps []Step `yaml:"steps"`
}

// Step is one operation. Exactly one of Query, Put or Delete is set.
type Step struct {
	Name   string      `yaml:"name,omitempty"`
	Query  *QueryDoc   `yaml:"query,omitempty"`
	Put    []RecordDoc `yaml:"put,omitempty"`
	Delete []string    `yaml:"delete,omitempty"`

	// Expect is optional; a step without it only has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Op names the step's operation.
func (s Step) Op() string {
	switch {
	case s.Query != nil:
		return OpQuery
	case s.Put != nil:
		return OpPut
	case s.Delete != nil:
		return OpDelete
	}
	return ""
}

// Step operations.
const (
	OpQuery  = "query"
	OpPut    = "put"
	OpDelete = "delete"
)

// Expect describes a step's expected outcome.
type Expect struct {
	// Error is the expected error class (see Error* constants). Empty
	// means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Strategy is the expected plan strategy, or "empty" for a
	// statically empty filter.
	Strategy string `yaml:"strategy,omitempty"`

	// Keys are the expected result keys in order (query) or the written
	// keys (put). Incomplete put keys are reported by kind only.
	Keys []string `yaml:"keys,omitempty"`

	// AnyOrder compares Keys as a set.
	AnyOrder bool `yaml:"any_order,omitempty"`

	// Count is the expected number of results.
	Count *int `yaml:"count,omitempty"`

	// Rows are per-row property subsets, compared in order.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Subqueries is the expected number of store queries the step issued.
	Subqueries *int `yaml:"subqueries,omitempty"`
}

// Error classes reported in traces and matched by Expect.Error.
const (
	ErrorIntegrity       = "integrity"
	ErrorTooManyBranches = "too_many_branches"
	ErrorInvalidFilter   = "invalid_filter"
	ErrorExecution       = "execution"
	ErrorOther           = "error"
)

// StrategyEmpty is reported for queries normalized to an empty result.
const StrategyEmpty = "empty"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative Models path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Models != "" && !filepath.IsAbs(scenario.Models) {
		scenario.Models = filepath.Join(filepath.Dir(path), scenario.Models)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.MaxBranches < 0 {
		return fmt.Errorf("max_branches must not be negative")
	}

	if s.Models != "" {
		if _, err := os.Stat(s.Models); os.IsNotExist(err) {
			return fmt.Errorf("models file not found: %s", s.Models)
		}
	}

	for i, rec := range s.Seed {
		if rec.Key == "" && rec.Kind == "" {
			return fmt.Errorf("seed[%d]: key or kind is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its operation.
func validateStep(index int, step Step) error {
	set := 0
	for _, present := range []bool{step.Query != nil, step.Put != nil, step.Delete != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of query, put, delete is required", index)
	}

	if step.Query != nil && step.Query.Kind == "" {
		return fmt.Errorf("steps[%d]: query kind is required", index)
	}
	if step.Put != nil && len(step.Put) == 0 {
		return fmt.Errorf("steps[%d]: put needs at least one record", index)
	}

	if step.Expect == nil {
		return nil
	}
	switch step.Expect.Error {
	case "", ErrorIntegrity, ErrorTooManyBranches, ErrorInvalidFilter, ErrorExecution, ErrorOther:
	default:
		return fmt.Errorf("steps[%d].expect: unknown error class %q", index, step.Expect.Error)
	}
	if step.Op() != OpQuery && (step.Expect.Strategy != "" || step.Expect.Rows != nil) {
		return fmt.Errorf("steps[%d].expect: strategy and rows apply to queries only", index)
	}
	return nil
}
