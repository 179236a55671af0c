package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeData unmarshals the data of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp.Status
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const validSlices = `package app

slice: counter: state: {count: 0}

slice: total: {
	state: {sum: 0}
	deps: ["counter"]
}
`

const counterScenario = `name: counter
description: counter effect runs twice
slices: |
  slice: counter: state: {count: 0}
effects:
  - name: watch
    reads: [counter.count]
steps:
  - flush: true
  - dispatch: {slice: counter, set: {count: 1}}
  - flush: true
assertions:
  - type: expr
    expr: counter.count == 1
  - type: effect_runs
    effect: watch
    count: 2
`
