package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"fruit_queries", "unique_users"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestGolden_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/unique_users.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalSnapshot(t *testing.T) {
	result := NewResult()
	result.AddTrace(StepTrace{Step: 0, Op: OpDelete, Keys: []string{}})

	data, err := MarshalSnapshot("tiny", result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"scenario_name": "tiny",
		"trace": [{"step": 0, "op": "delete", "keys": [], "subqueries": 0, "point_gets": 0}]
	}`, string(data))
}
