package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollsched/internal/record"
	"pollsched/internal/sched"
)

const referenceSet = `per 8 2
aper 3 1
ser 4 1
8
`

// writeTaskSet writes a task set into a fresh working directory and
// returns its path.
func writeTaskSet(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRun_Reference(t *testing.T) {
	path := writeTaskSet(t, "reference.txt", referenceSet)
	csvPath := filepath.Join(filepath.Dir(path), "trace.csv")
	dbPath := filepath.Join(filepath.Dir(path), "runs.db")

	out, _, err := execute(t, "run", path, "--csv", csvPath, "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "τ1")
	assert.Contains(t, out, "aper")
	assert.Contains(t, out, "busy 3")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "tick,idle,type,id"))
	assert.Contains(t, string(data), "4,false,aper,1,4,,3,1,4")

	st, err := record.Open(dbPath)
	require.NoError(t, err)
	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	st.Close()
	require.Len(t, runs, 1)
	assert.Equal(t, path, runs[0].Source)

	listed, _, err := execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, listed, runs[0].ID.String())

	shown, _, err := execute(t, "show", runs[0].ID.String(), "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, string(data), shown)
}

func TestRun_Stream(t *testing.T) {
	path := writeTaskSet(t, "reference.yaml", `
horizon: 8
server: {period: 4, capacity: 1}
periodic: [{period: 8, exec: 2}]
aperiodic: [{arrival: 3, exec: 1}]
`)

	out, _, err := execute(t, "run", path, "--stream", "--no-gantt", "--no-summary")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[0], "Periodic")
	assert.Contains(t, lines[3], "Idle")
	assert.Contains(t, lines[4], "Aperiodic")
}

func TestRun_HorizonMismatch(t *testing.T) {
	path := writeTaskSet(t, "reference.txt", strings.Replace(referenceSet, "\n8\n", "\n16\n", 1))

	out, logs, err := execute(t, "run", path)
	require.ErrorIs(t, err, sched.ErrHorizonMismatch)
	assert.Contains(t, out, "MISMATCH")
	assert.Contains(t, logs, "horizon is not one hyperperiod")

	out, logs, err = execute(t, "run", path, "--fix-horizon", "--no-summary")
	require.NoError(t, err)
	assert.Contains(t, logs, "retrying")
	assert.Contains(t, out, "τ1")
}

func TestAnalyze_Infeasible(t *testing.T) {
	path := writeTaskSet(t, "heavy.txt", "per 4 3\nser 4 1\n4\n")

	out, _, err := execute(t, "analyze", path)
	require.ErrorIs(t, err, sched.ErrInfeasible)
	assert.Contains(t, out, "τ1(P=4, C=3)")
	assert.Contains(t, out, "NOT SCHEDULABLE")
}

func TestAnalyze_Feasible(t *testing.T) {
	path := writeTaskSet(t, "reference.txt", referenceSet)

	out, _, err := execute(t, "analyze", path, "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "feasible")
	assert.Contains(t, out, "server(P=4, C=1)")
}

func TestHyperperiod(t *testing.T) {
	path := writeTaskSet(t, "coprime.txt", "per 3 1\nper 5 1\nser 5 1\n15\n")

	out, _, err := execute(t, "hyperperiod", path)
	require.NoError(t, err)
	assert.Equal(t, "15\n", out)
}

func TestShow_RequiresDatabase(t *testing.T) {
	writeTaskSet(t, "unused.txt", referenceSet)

	_, _, err := execute(t, "show", "9m4e2mr0ui3e8a215n4g")
	assert.ErrorContains(t, err, "no database")
}

func TestRun_FixHorizonRefusesOverflow(t *testing.T) {
	path := writeTaskSet(t, "huge.txt", fmt.Sprintf("per %d 1\nper %d 1\nser 2 1\n8\n", math.MaxInt, math.MaxInt-1))

	out, stderr, err := execute(t, "run", path, "--fix-horizon")
	require.ErrorIs(t, err, sched.ErrHyperperiodOverflow)
	assert.NotErrorIs(t, err, sched.ErrHorizonMismatch)
	assert.Contains(t, out, "overflow")
	assert.NotContains(t, stderr, "retrying")

	_, _, err = execute(t, "hyperperiod", path)
	assert.ErrorIs(t, err, sched.ErrHyperperiodOverflow)
}

func TestRun_WarnsOnMalformedConfig(t *testing.T) {
	path := writeTaskSet(t, "reference.txt", referenceSet)
	cfgPath := filepath.Join(filepath.Dir(path), "pollsched.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gantt: [unterminated\n"), 0o644))

	_, stderr, err := execute(t, "analyze", path, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "config file ignored")
	assert.Contains(t, stderr, "pollsched.yml")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestReportRejection_KeepsWriteError(t *testing.T) {
	prev := logger
	logger = slog.New(slog.DiscardHandler)
	t.Cleanup(func() { logger = prev })

	a := sched.Analysis{Horizon: 16, Hyperperiod: 8, Feasible: true}
	err := reportRejection(failingWriter{}, a, a.Err())

	assert.ErrorIs(t, err, sched.ErrHorizonMismatch)
	assert.ErrorContains(t, err, "disk full")
}
