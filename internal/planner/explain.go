package planner

import (
	"fmt"
	"strings"
)

// Explain renders a plan as indented text, one fact per line:
//
//	strategy: fan-out
//	kind: fruit
//	branches: 2
//	  [0] fruit WHERE color = "red"
//	  [1] fruit WHERE color = "green"
func Explain(p *Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "strategy: %s\n", p.Strategy)
	fmt.Fprintf(&sb, "kind: %s\n", p.Query.Kind)

	switch p.Strategy {
	case KeyBatch:
		fmt.Fprintf(&sb, "keys: %d\n", len(p.Keys))
		for i, k := range p.Keys {
			fmt.Fprintf(&sb, "  [%d] %s\n", i, k)
		}
	case IdentityCache:
		fmt.Fprintf(&sb, "marker: %s\n", p.Marker)
	}

	fmt.Fprintf(&sb, "branches: %d\n", len(p.Branches))
	for i := range p.Branches {
		fmt.Fprintf(&sb, "  [%d] %s\n", i, p.SubQuery(i, -1))
	}
	return sb.String()
}
