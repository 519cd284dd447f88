package queryir

import (
	"strings"

	"github.com/roach88/disjunct/internal/ir"
)

// Format renders a filter tree in a stable, human-readable form.
//
//	(status = "A" OR NOT (age >= 3 AND tags IN ["x"]))
//
// An empty AND renders as TRUE and an empty OR as FALSE.
func Format(n Node) string {
	var sb strings.Builder
	writeNode(&sb, n, true)
	return sb.String()
}

// FormatLeaf renders a single comparison.
func FormatLeaf(l Leaf) string {
	column := l.Column
	if column == "" {
		column = "<none>"
	}
	return column + " " + l.Op.String() + " " + ir.Format(l.Value)
}

func writeNode(sb *strings.Builder, n Node, top bool) {
	switch node := n.(type) {
	case nil:
		sb.WriteString("TRUE")
	case Leaf:
		sb.WriteString(FormatLeaf(node))
	case Branch:
		if node.Negated {
			sb.WriteString("NOT ")
		}
		if len(node.Children) == 0 {
			if node.Connector == And {
				sb.WriteString("TRUE")
			} else {
				sb.WriteString("FALSE")
			}
			return
		}
		parens := !top || node.Negated || len(node.Children) > 1
		if parens {
			sb.WriteByte('(')
		}
		for i, c := range node.Children {
			if i > 0 {
				sb.WriteString(" " + node.Connector.String() + " ")
			}
			writeNode(sb, c, false)
		}
		if parens {
			sb.WriteByte(')')
		}
	}
}
