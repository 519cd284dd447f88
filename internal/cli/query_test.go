package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/disjunct/internal/ir"
)

type queryResponse struct {
	Status string `json:"status"`
	Data   struct {
		Strategy string            `json:"strategy"`
		Count    int               `json:"count"`
		Entities []json.RawMessage `json:"entities"`
	} `json:"data"`
	Error *CLIError `json:"error"`
}

func seedFruit(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "shop.db")
	out, err := execute(t, "--database", db, "put", "testdata/records/fruit.yaml")
	require.NoError(t, err)
	assert.Equal(t, "✓ Wrote 3 record(s)\n  fruit:1\n  fruit:2\n  fruit:3\n", out)
	return db
}

func TestQuery_FanOutText(t *testing.T) {
	db := seedFruit(t)

	out, err := execute(t, "--database", db, "query", "testdata/queries/red_or_green.yaml")
	require.NoError(t, err)
	assert.Equal(t,
		`{"key":"fruit:1","properties":{"color":"red","size":5,"tags":["a","b"]}}`+"\n"+
			`{"key":"fruit:2","properties":{"color":"green","size":3}}`+"\n",
		out)
}

func TestQuery_JSON(t *testing.T) {
	db := seedFruit(t)

	out, err := execute(t, "--database", db, "--format", "json", "query", "testdata/queries/by_key.yaml")
	require.NoError(t, err)

	var resp queryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "key-batch", resp.Data.Strategy)
	assert.Equal(t, 2, resp.Data.Count)
	require.Len(t, resp.Data.Entities, 2)
	assert.JSONEq(t, `{"key":"fruit:1","properties":{"color":"red","size":5,"tags":["a","b"]}}`, string(resp.Data.Entities[0]))
}

func TestQuery_StaticallyEmpty(t *testing.T) {
	db := seedFruit(t)

	out, err := execute(t, "--database", db, "--format", "json", "query", "testdata/queries/empty.yaml")
	require.NoError(t, err)

	var resp queryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "empty", resp.Data.Strategy)
	assert.Equal(t, 0, resp.Data.Count)
	assert.Empty(t, resp.Data.Entities)
}

func TestQuery_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	out, err := execute(t, "--database", db, "query", "testdata/queries/red_or_green.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: database not found")
}

func TestQuery_InvalidFilter(t *testing.T) {
	db := seedFruit(t)

	_, err := execute(t, "--database", db, "query", "testdata/queries/bad_op.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeInvalidQuery)
}

func TestPut_UniqueEnforcement(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")

	out, err := execute(t, "--database", db, "--format", "json", "put", "--models", "testdata/models", "testdata/records/users.yaml")
	require.NoError(t, err)
	var put struct {
		Data PutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &put))
	require.Len(t, put.Data.Keys, 1)
	key, err := ir.ParseKey(put.Data.Keys[0])
	require.NoError(t, err)
	assert.Equal(t, "user", key.Kind)
	assert.NotEmpty(t, key.Name)

	// Same email again.
	out, err = execute(t, "--database", db, "put", "--models", "testdata/models", "testdata/records/users.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E203]: unique constraint violated on user(email)")

	// Two new records sharing an email within one batch.
	_, err = execute(t, "--database", db, "put", "--models", "testdata/models", "testdata/records/duplicate_users.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "duplicated within batch")

	out, err = execute(t, "--database", db, "--format", "json", "query", "--models", "testdata/models", "testdata/queries/by_email.yaml")
	require.NoError(t, err)
	var resp queryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "identity-cache", resp.Data.Strategy)
	assert.Equal(t, 1, resp.Data.Count)
}

func TestPut_WithoutModelsAcceptsDuplicates(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")

	out, err := execute(t, "--database", db, "--format", "json", "put", "testdata/records/duplicate_users.yaml")
	require.NoError(t, err)
	var put struct {
		Data PutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &put))
	assert.Len(t, put.Data.Keys, 2)
}

func TestPut_MalformedRecords(t *testing.T) {
	db := filepath.Join(t.TempDir(), "shop.db")

	_, err := execute(t, "--database", db, "put", "testdata/queries/red_or_green.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeInvalidRecords)
}

func TestGroupByKind(t *testing.T) {
	a1 := ir.NewEntity(ir.IDKey("a", 1, nil))
	b1 := ir.NewEntity(ir.IDKey("b", 1, nil))
	a2 := ir.NewEntity(ir.IDKey("a", 2, nil))

	batches := groupByKind([]*ir.Entity{a1, b1, a2})
	require.Len(t, batches, 2)
	assert.Equal(t, []*ir.Entity{a1, a2}, batches[0])
	assert.Equal(t, []*ir.Entity{b1}, batches[1])
	assert.Empty(t, groupByKind(nil))
}

// executeStderr runs the CLI and returns stdout and stderr separately.
func executeStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestQuery_MetricsFlag(t *testing.T) {
	db := seedFruit(t)

	out, stderr, err := executeStderr(t, "--database", db, "--metrics", "query", "testdata/queries/red_or_green.yaml")
	require.NoError(t, err)
	assert.NotContains(t, out, "disjunct_")
	assert.Contains(t, stderr, "# TYPE disjunct_queries_total counter")
	assert.Contains(t, stderr, `disjunct_queries_total{strategy="fan-out"} 1`)
	assert.Contains(t, stderr, "disjunct_subqueries_total 2")

	_, stderr, err = executeStderr(t, "--database", db, "query", "testdata/queries/red_or_green.yaml")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "disjunct_queries_total")
}

func TestPut_MetricsFlagCountsViolations(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")

	_, stderr, err := executeStderr(t, "--database", db, "--metrics", "put", "--models", "testdata/models", "testdata/records/duplicate_users.yaml")
	require.Error(t, err)
	assert.Contains(t, stderr, "disjunct_integrity_violations_total 1")
}

func TestPut_IntegrityDetailsJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")

	out, err := execute(t, "--database", db, "--format", "json", "put", "--models", "testdata/models", "testdata/records/duplicate_users.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string           `json:"code"`
			Details IntegrityDetails `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeIntegrity, resp.Error.Code)
	assert.Equal(t, "user", resp.Error.Details.Kind)
	assert.Equal(t, []string{"email"}, resp.Error.Details.Columns)
	assert.Equal(t, []string{`"bob@example.com"`}, resp.Error.Details.Values)
	assert.Empty(t, resp.Error.Details.Existing)
}
