package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"ttsched/internal/config"
	"ttsched/internal/trace"
)

func writeWorkload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level=off"}, args...))
	err := root.Execute()
	return out.String(), err
}

const workloadYAML = `
run_ticks: 100
tasks:
  - name: a
    work: 20
  - name: sensor
    kind: periodic
    cycle: 25
    offset: 5
    max_time: 2
    work_per_job: 1
`

func TestRunCmd_Text(t *testing.T) {
	out, err := execute(t, "run", "-c", writeWorkload(t, workloadYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "100 ticks per cpu")
	assert.Contains(t, out, "tid 0:")
	assert.Contains(t, out, "tid 1: dispatched 4")
}

func TestRunCmd_JSON(t *testing.T) {
	out, err := execute(t, "run", "-c", writeWorkload(t, workloadYAML), "--ticks", "60", "--format", "json")
	require.NoError(t, err)

	var s trace.Summary
	require.NoError(t, sonnet.Unmarshal([]byte(out), &s))
	assert.Equal(t, uint64(60), s.Ticks)
	require.Len(t, s.Threads, 2)
	assert.Equal(t, uint64(20), s.Threads[0].RunTicks)
	// activations at 5, 30 and 55
	assert.Equal(t, 3, s.Threads[1].Dispatches)
}

func TestRunCmd_BadFormat(t *testing.T) {
	_, err := execute(t, "run", "-c", writeWorkload(t, workloadYAML), "--format", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestCheckCmd(t *testing.T) {
	out, err := execute(t, "check", "-c", writeWorkload(t, workloadYAML+`
  - name: other
    kind: periodic
    cycle: 50
    offset: 15
    max_time: 4
    work_per_job: 1
`))
	require.NoError(t, err)
	assert.Contains(t, out, "2 admitted, 0 rejected, hyperperiod 50ms")
}

func TestCheckCmd_Rejected(t *testing.T) {
	out, err := execute(t, "check", "-c", writeWorkload(t, workloadYAML+`
  - name: clash
    kind: periodic
    cycle: 50
    offset: 6
    max_time: 1
    work_per_job: 1
`))
	require.Error(t, err)
	assert.Contains(t, out, "REJECT clash")
	assert.Contains(t, out, "1 admitted, 1 rejected")
}

func TestGenCmd(t *testing.T) {
	out, err := execute(t, "gen", "-n", "5", "--seed", "7")
	require.NoError(t, err)

	cfg, err := config.Parse([]byte(out))
	require.NoError(t, err)
	assert.Len(t, cfg.Tasks, 5)

	again, err := execute(t, "gen", "-n", "5", "--seed", "7")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}
