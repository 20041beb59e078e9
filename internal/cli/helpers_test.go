package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

// testEnv is a temporary database plus the global flags pointing at it.
type testEnv struct {
	t      *testing.T
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{t: t, dbPath: filepath.Join(t.TempDir(), "cadence.db")}
}

// run executes the root command with the env's database and user.
func (e *testEnv) run(args ...string) (stdout, stderr string, err error) {
	e.t.Helper()
	full := append([]string{"--db", e.dbPath, "--user", "tester"}, args...)
	return execute(e.t, full...)
}

// runJSON executes with --format json and decodes the data payload into v.
func (e *testEnv) runJSON(v any, args ...string) {
	e.t.Helper()
	out, _, err := e.run(append(args, "--format", "json")...)
	require.NoError(e.t, err, "stdout: %s", out)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "stdout: %s", out)
	require.Equal(e.t, "ok", resp.Status)
	if v != nil {
		require.NoError(e.t, json.Unmarshal(resp.Data, v))
	}
}

// addStandard creates a weekly standard and returns it.
func (e *testEnv) addStandard(args ...string) ir.Standard {
	e.t.Helper()
	var std ir.Standard
	base := []string{"standard", "add", "--minimum", "60", "--unit", "min", "--cadence", "1w"}
	e.runJSON(&std, append(base, args...)...)
	require.NotEmpty(e.t, std.ID)
	return std
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
