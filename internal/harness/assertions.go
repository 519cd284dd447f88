package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/disjunct/internal/ir"
)

// AssertionError is returned when a step's outcome does not match its
// expectation. It includes the step trace to help debug the failure.
type AssertionError struct {
	Step     int       // Step index
	Type     string    // Which expectation failed
	Expected string    // Human-readable expected outcome
	Actual   string    // Human-readable actual outcome
	Trace    StepTrace // What the step did
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "steps[%d] %s mismatch\n", e.Step, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "  Step: %s", e.Trace.Op)
	if e.Trace.Strategy != "" {
		fmt.Fprintf(&buf, " strategy=%s", e.Trace.Strategy)
	}
	fmt.Fprintf(&buf, " keys=%v", e.Trace.Keys)
	if e.Trace.Error != "" {
		fmt.Fprintf(&buf, " error=%s", e.Trace.Error)
	}
	buf.WriteByte('\n')

	return buf.String()
}

// outcome is what a step produced.
type outcome struct {
	trace    StepTrace
	entities []*ir.Entity // query results; nil for writes
	err      error
}

// EvaluateExpect checks one step's outcome against its expectation and
// returns every mismatch. A nil expectation only requires success.
func evaluateExpect(step int, expect *Expect, out outcome) []error {
	mismatch := func(typ, expected, actual string) error {
		return &AssertionError{Step: step, Type: typ, Expected: expected, Actual: actual, Trace: out.trace}
	}

	if expect == nil {
		if out.err != nil {
			return []error{mismatch("error", "success", out.err.Error())}
		}
		return nil
	}

	if expect.Error != "" || out.err != nil {
		if out.trace.Error != expect.Error {
			actual := "success"
			if out.err != nil {
				actual = fmt.Sprintf("%s (%v)", out.trace.Error, out.err)
			}
			expected := expect.Error
			if expected == "" {
				expected = "success"
			}
			return []error{mismatch("error", expected, actual)}
		}
		// Only the error class is asserted for failing steps.
		return nil
	}

	var errs []error
	if expect.Strategy != "" && expect.Strategy != out.trace.Strategy {
		errs = append(errs, mismatch("strategy", expect.Strategy, out.trace.Strategy))
	}
	if expect.Keys != nil {
		if err := assertKeys(expect, out.trace.Keys); err != "" {
			errs = append(errs, mismatch("keys", fmt.Sprint(expect.Keys), err))
		}
	}
	if expect.Count != nil && *expect.Count != len(out.trace.Keys) {
		errs = append(errs, mismatch("count", fmt.Sprint(*expect.Count), fmt.Sprint(len(out.trace.Keys))))
	}
	if expect.Subqueries != nil && *expect.Subqueries != out.trace.Subqueries {
		errs = append(errs, mismatch("subqueries", fmt.Sprint(*expect.Subqueries), fmt.Sprint(out.trace.Subqueries)))
	}
	if expect.Rows != nil {
		if err := assertRows(expect.Rows, out.entities); err != nil {
			errs = append(errs, mismatch("rows", formatRows(expect.Rows), err.Error()))
		}
	}
	return errs
}

// assertKeys returns "" when the keys match, or the actual keys rendered
// for the mismatch message.
func assertKeys(expect *Expect, actual []string) string {
	want := expect.Keys
	got := actual
	if expect.AnyOrder {
		want = slices.Clone(want)
		got = slices.Clone(got)
		sort.Strings(want)
		sort.Strings(got)
	}
	if slices.Equal(want, got) {
		return ""
	}
	return fmt.Sprint(actual)
}

// assertRows compares each expected row against the entity at the same
// position. A row is a subset match: unlisted properties are ignored.
func assertRows(rows []map[string]any, entities []*ir.Entity) error {
	if len(rows) != len(entities) {
		return fmt.Errorf("%d rows", len(entities))
	}
	for i, row := range rows {
		for _, name := range sortedNames(row) {
			want, err := rowValue(name, row[name])
			if err != nil {
				return fmt.Errorf("row %d: %s: %w", i, name, err)
			}
			got, ok := entities[i].Get(name)
			if !ok {
				return fmt.Errorf("row %d: %s missing", i, name)
			}
			if !ir.Equal(want, got) {
				return fmt.Errorf("row %d: %s = %s", i, name, ir.Format(got))
			}
		}
	}
	return nil
}

// rowValue parses an expected value; __key__ takes a bare key path.
func rowValue(name string, raw any) (ir.Value, error) {
	if s, ok := raw.(string); ok && name == ir.KeyProperty {
		return ir.ParseKey(s)
	}
	return ParseValue(raw)
}

func sortedNames(row map[string]any) []string {
	names := make([]string, 0, len(row))
	for n := range row {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func formatRows(rows []map[string]any) string {
	parts := make([]string, len(rows))
	for i, row := range rows {
		fields := make([]string, 0, len(row))
		for _, n := range sortedNames(row) {
			fields = append(fields, fmt.Sprintf("%s=%v", n, row[n]))
		}
		parts[i] = "{" + strings.Join(fields, " ") + "}"
	}
	return strings.Join(parts, " ")
}
