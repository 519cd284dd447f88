package unique

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/disjunct/internal/ir"
)

// IntegrityError reports a write that would violate a unique combination.
// It is a business-rule rejection: callers must not retry the write without
// re-validating it.
type IntegrityError struct {
	Kind    string
	Columns []string
	Values  []ir.Value
	Marker  string

	// Existing is the key already holding the marker, nil when the conflict
	// is between two records of the same batch.
	Existing *ir.Key
}

func (e *IntegrityError) Error() string {
	values := make([]string, len(e.Values))
	for i, v := range e.Values {
		values[i] = ir.Format(v)
	}
	msg := fmt.Sprintf("unique constraint violated on %s(%s) = (%s)",
		e.Kind, strings.Join(e.Columns, ", "), strings.Join(values, ", "))
	if e.Existing != nil {
		msg += ": held by " + e.Existing.String()
	} else {
		msg += ": duplicated within batch"
	}
	return msg
}

// IsIntegrityError reports whether err is (or wraps) an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

func newIntegrityError(m Marker, existing *ir.Key) *IntegrityError {
	return &IntegrityError{
		Kind:     m.Kind,
		Columns:  m.Columns,
		Values:   m.Values,
		Marker:   m.String(),
		Existing: existing,
	}
}
