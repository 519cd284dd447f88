package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/model"
)

// Validation error codes (E100-E199)
const (
	ErrModelKindEmpty       = "E101" // kind is required
	ErrCombinationEmpty     = "E102" // unique combination has no columns
	ErrColumnNameEmpty      = "E103" // blank column name
	ErrDuplicateColumn      = "E104" // column repeated inside one combination
	ErrKeyInCombination     = "E105" // __key__ is unique by definition
	ErrDuplicateCombination = "E106" // same column set declared twice
	ErrDuplicateListColumn  = "E107" // list column declared twice
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled model.
// Returns all errors found (does not fail-fast).
func Validate(m *model.Model) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(m.Kind) == "" {
		errs = append(errs, ValidationError{
			Field:   "kind",
			Message: "kind is required and must be non-empty",
			Code:    ErrModelKindEmpty,
		})
	}

	seenSets := make(map[string]int)
	for i, combo := range m.UniqueTogether {
		field := fmt.Sprintf("%s.unique[%d]", m.Kind, i)
		if len(combo) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "combination must name at least one column",
				Code:    ErrCombinationEmpty,
			})
			continue
		}

		seen := make(map[string]bool)
		for _, col := range combo {
			switch {
			case strings.TrimSpace(col) == "":
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "column name must be non-empty",
					Code:    ErrColumnNameEmpty,
				})
			case col == ir.KeyProperty:
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("%s is always unique and cannot join a combination", ir.KeyProperty),
					Code:    ErrKeyInCombination,
				})
			case seen[col]:
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("duplicate column %q", col),
					Code:    ErrDuplicateColumn,
				})
			}
			seen[col] = true
		}

		set := setKey(combo)
		if j, dup := seenSets[set]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("same columns as unique[%d]", j),
				Code:    ErrDuplicateCombination,
			})
		} else {
			seenSets[set] = i
		}
	}

	seenList := make(map[string]bool)
	for i, col := range m.ListColumns {
		field := fmt.Sprintf("%s.list[%d]", m.Kind, i)
		if strings.TrimSpace(col) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "column name must be non-empty",
				Code:    ErrColumnNameEmpty,
			})
			continue
		}
		if seenList[col] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate list column %q", col),
				Code:    ErrDuplicateListColumn,
			})
		}
		seenList[col] = true
	}

	return errs
}

// setKey identifies a combination's column set regardless of order.
func setKey(combo []string) string {
	m := &model.Model{UniqueTogether: [][]string{combo}}
	cols := m.Combinations()
	if len(cols) == 0 {
		return ""
	}
	sorted := slices.Clone(cols[0])
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}
