package record

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollsched/internal/sched"
	"pollsched/internal/task"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSaveAndLoadRun(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	var ids task.IDAllocator
	set, err := task.NewSet(ids.NewPeriodic(8, 2), ids.NewAperiodic(3, 1), task.NewServer(4, 1))
	require.NoError(t, err)
	log, a, err := sched.Simulate(set, 8)
	require.NoError(t, err)

	require.NoError(t, st.SaveRun(ctx, "reference.txt", a, log))

	got, err := st.LoadLog(ctx, log.RunID)
	require.NoError(t, err)
	assert.Equal(t, log.RunID, got.RunID)
	assert.Equal(t, log.ServerPeriod, got.ServerPeriod)
	assert.Equal(t, log.Entries(), got.Entries())

	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "reference.txt", runs[0].Source)
	assert.Equal(t, 8, runs[0].Horizon)
	assert.InDelta(t, 0.5, runs[0].Utilization, 1e-12)
}

func TestLoadLog_UnknownRun(t *testing.T) {
	st := openStore(t)

	_, err := st.LoadLog(context.Background(), xid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMigrate_Idempotent(t *testing.T) {
	st := openStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen_InMemory(t *testing.T) {
	st, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
