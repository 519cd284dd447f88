package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/disjunct/internal/model"
)

// CompileFile reads a CUE file and compiles every model under its
// top-level "models" struct.
func CompileFile(path string) (*model.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading models: %w", err)
	}
	return CompileBytes(path, data)
}

// CompileBytes compiles CUE source holding a top-level "models" struct:
//
//	models: fruit: {
//		unique: [["name"], ["color", "origin"]]
//		list: ["tags"]
//	}
func CompileBytes(filename string, data []byte) (*model.Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileModels(v.LookupPath(cue.ParsePath("models")))
}

// CompileModels compiles a struct of models keyed by kind.
// A missing value compiles to an empty registry.
func CompileModels(v cue.Value) (*model.Registry, error) {
	if !v.Exists() {
		return model.NewRegistry(), nil
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []*model.Model
	for iter.Next() {
		m, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		if errs := Validate(m); len(errs) > 0 {
			return nil, errs[0]
		}
		models = append(models, m)
	}
	return model.NewRegistry(models...), nil
}

// CompileModel parses a CUE value into a Model. The kind is the value's
// struct label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`models: fruit: { unique: [["name"]] }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("models.fruit")))
func CompileModel(v cue.Value) (*model.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &model.Model{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		m.Kind = labels[len(labels)-1].Unquoted()
	}

	uniqueVal := v.LookupPath(cue.ParsePath("unique"))
	if uniqueVal.Exists() {
		combos, err := parseCombinations(uniqueVal)
		if err != nil {
			return nil, err
		}
		m.UniqueTogether = combos
	}

	listVal := v.LookupPath(cue.ParsePath("list"))
	if listVal.Exists() {
		cols, err := parseStrings(listVal, "list")
		if err != nil {
			return nil, err
		}
		m.ListColumns = cols
	}

	return m, nil
}

// parseCombinations accepts a list whose elements are either a column name
// (a single-column constraint) or a list of column names.
func parseCombinations(v cue.Value) ([][]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "unique", Message: "must be a list", Pos: v.Pos()}
	}

	var combos [][]string
	for iter.Next() {
		elem := iter.Value()
		if s, err := elem.String(); err == nil {
			combos = append(combos, []string{s})
			continue
		}
		cols, err := parseStrings(elem, "unique")
		if err != nil {
			return nil, err
		}
		combos = append(combos, cols)
	}
	return combos, nil
}

func parseStrings(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of column names", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: "column names must be strings",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
