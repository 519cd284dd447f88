package queryir

import "fmt"

// ValidationResult contains the shape analysis of a filter tree.
type ValidationResult struct {
	// IsDNF indicates the tree is an OR of AND-of-primitive-leaves with no
	// negation anywhere.
	IsDNF bool

	// Violations lists every departure from that shape.
	// Empty when IsDNF is true.
	Violations []string
}

// ValidateDNF checks the normalizer's output invariant:
//  1. the root is a non-negated OR
//  2. every child is a non-negated AND of leaves, or a single leaf
//  3. every leaf uses a primitive operator
//
// ValidateDNF is a pure function with no side effects.
func ValidateDNF(n Node) ValidationResult {
	v := &validator{violations: []string{}}
	v.validateRoot(n)
	return ValidationResult{
		IsDNF:      len(v.violations) == 0,
		Violations: v.violations,
	}
}

// validator accumulates violations during traversal.
type validator struct {
	violations []string
}

func (v *validator) add(format string, args ...any) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
}

func (v *validator) validateRoot(n Node) {
	root, ok := n.(Branch)
	if !ok {
		v.add("root must be an OR branch, got %T", n)
		return
	}
	if root.Connector != Or {
		v.add("root connector must be OR, got %s", root.Connector)
	}
	if root.Negated {
		v.add("root must not be negated")
	}
	for i, child := range root.Children {
		switch c := child.(type) {
		case Leaf:
			v.validateLeaf(fmt.Sprintf("branch %d", i), c)
		case Branch:
			v.validateConjunction(i, c)
		default:
			v.add("branch %d: unknown node type %T", i, child)
		}
	}
}

func (v *validator) validateConjunction(i int, b Branch) {
	if b.Connector != And {
		v.add("branch %d: connector must be AND, got %s", i, b.Connector)
	}
	if b.Negated {
		v.add("branch %d: must not be negated", i)
	}
	for j, child := range b.Children {
		leaf, ok := child.(Leaf)
		if !ok {
			v.add("branch %d child %d: must be a leaf, got %T", i, j, child)
			continue
		}
		v.validateLeaf(fmt.Sprintf("branch %d child %d", i, j), leaf)
	}
}

func (v *validator) validateLeaf(where string, l Leaf) {
	if !l.Op.Primitive() {
		v.add("%s: compound operator %s on %q", where, l.Op, l.Column)
	}
	if l.Column == "" {
		v.add("%s: empty column", where)
	}
}
