package normalize

import (
	"errors"
	"fmt"
)

// ErrEmptyResult reports a filter proven unsatisfiable. It is a valid
// outcome, not a failure: the answer is zero rows and zero store calls.
var ErrEmptyResult = errors.New("normalize: filter is statically empty")

// ErrInvalidFilter reports a malformed filter tree (bad operand shape,
// empty column name).
var ErrInvalidFilter = errors.New("normalize: invalid filter")

// TooManyBranchesError reports a filter whose normal form exceeds the
// configured branch cap. Callers should narrow the filter or raise the cap.
type TooManyBranchesError struct {
	// Branches is the expanded branch count, saturated at Max+1.
	Branches int
	Max      int
}

// Error implements the error interface.
func (e *TooManyBranchesError) Error() string {
	return fmt.Sprintf("too many sub-queries: filter expands to more than %d branches (at least %d)", e.Max, e.Branches)
}

// IsTooManyBranches reports whether err is or wraps a TooManyBranchesError.
func IsTooManyBranches(err error) bool {
	var tmb *TooManyBranchesError
	return errors.As(err, &tmb)
}
