package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDNF_CanonicalShape(t *testing.T) {
	tree := AnyOf(
		AllOf(Eq("status", "A"), Gt("age", 3)),
		AllOf(Eq("status", "B")),
	)

	result := ValidateDNF(tree)

	assert.True(t, result.IsDNF)
	assert.Empty(t, result.Violations)
}

func TestValidateDNF_EmptyOrIsValid(t *testing.T) {
	// The unsatisfiable filter.
	result := ValidateDNF(AnyOf())
	assert.True(t, result.IsDNF)
}

func TestValidateDNF_BareLeafChild(t *testing.T) {
	result := ValidateDNF(AnyOf(Eq("a", 1)))
	assert.True(t, result.IsDNF)
}

func TestValidateDNF_Violations(t *testing.T) {
	tests := []struct {
		name string
		tree Node
		want string
	}{
		{"leaf root", Eq("a", 1), "root must be an OR branch"},
		{"and root", AllOf(Eq("a", 1)), "root connector must be OR"},
		{"negated root", Not(AnyOf(Eq("a", 1))), "root must not be negated"},
		{"nested or", AnyOf(AnyOf(Eq("a", 1))), "connector must be AND"},
		{"negated conjunction", AnyOf(Not(AllOf(Eq("a", 1)))), "must not be negated"},
		{"nested branch", AnyOf(AllOf(AllOf(Eq("a", 1)))), "must be a leaf"},
		{"compound leaf", AnyOf(AllOf(In("a", 1, 2))), "compound operator IN"},
		{"empty column", AnyOf(AllOf(Leaf{Op: OpEq})), "empty column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateDNF(tt.tree)
			assert.False(t, result.IsDNF)
			require.NotEmpty(t, result.Violations)
			assert.Contains(t, result.Violations[0], tt.want)
		})
	}
}

func TestValidateDNF_ReportsEveryViolation(t *testing.T) {
	tree := AnyOf(
		AllOf(In("a", 1), StartsWith("b", "x")),
		Not(AllOf(Eq("c", 1))),
	)

	result := ValidateDNF(tree)

	assert.False(t, result.IsDNF)
	assert.Len(t, result.Violations, 3)
}
