package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Counter int               `json:"counter"`
	Labels  []string          `json:"labels,omitempty"`
	Vars    map[string]string `json:"vars,omitempty"`
}

// runStoreSuite exercises the Store contract against one backend. IDs are
// unique per run so suites can share a database.
func runStoreSuite(t *testing.T, st Store[testState]) {
	t.Helper()
	ctx := context.Background()
	id := func(name string) string { return name + "-" + uuid.NewString() }

	t.Run("missing instance", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, id("missing"))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("latest is highest seq", func(t *testing.T) {
		inst := id("order")
		require.NoError(t, st.SaveSnapshot(ctx, inst, 1, testState{Counter: 1}))
		require.NoError(t, st.SaveSnapshot(ctx, inst, 3, testState{Counter: 3, Labels: []string{"a"}}))
		require.NoError(t, st.SaveSnapshot(ctx, inst, 2, testState{Counter: 2}))

		got, seq, err := st.LoadLatest(ctx, inst)
		require.NoError(t, err)
		require.Equal(t, 3, seq)
		require.Equal(t, testState{Counter: 3, Labels: []string{"a"}}, got)
	})

	t.Run("same seq replaces", func(t *testing.T) {
		inst := id("replace")
		require.NoError(t, st.SaveSnapshot(ctx, inst, 1, testState{Counter: 1}))
		require.NoError(t, st.SaveSnapshot(ctx, inst, 1, testState{Counter: 10, Vars: map[string]string{"k": "v"}}))

		got, seq, err := st.LoadLatest(ctx, inst)
		require.NoError(t, err)
		require.Equal(t, 1, seq)
		require.Equal(t, 10, got.Counter)
		require.Equal(t, "v", got.Vars["k"])
	})

	t.Run("instances are isolated", func(t *testing.T) {
		a, b := id("a"), id("b")
		require.NoError(t, st.SaveSnapshot(ctx, a, 5, testState{Counter: 5}))
		require.NoError(t, st.SaveSnapshot(ctx, b, 1, testState{Counter: 1}))

		_, seq, err := st.LoadLatest(ctx, b)
		require.NoError(t, err)
		require.Equal(t, 1, seq)
	})

	t.Run("delete instance", func(t *testing.T) {
		keep, drop := id("keep"), id("drop")
		require.NoError(t, st.SaveSnapshot(ctx, keep, 1, testState{Counter: 1}))
		require.NoError(t, st.SaveSnapshot(ctx, drop, 1, testState{Counter: 1}))
		require.NoError(t, st.SaveSnapshot(ctx, drop, 2, testState{Counter: 2}))

		require.NoError(t, st.DeleteInstance(ctx, drop))
		_, _, err := st.LoadLatest(ctx, drop)
		require.ErrorIs(t, err, ErrNotFound)

		_, _, err = st.LoadLatest(ctx, keep)
		require.NoError(t, err)

		require.NoError(t, st.DeleteInstance(ctx, id("never-saved")))
	})

	t.Run("checkpoints", func(t *testing.T) {
		cp := id("before-approval")
		_, _, err := st.LoadCheckpoint(ctx, cp)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, st.SaveCheckpoint(ctx, cp, testState{Counter: 7}, 4))
		require.NoError(t, st.SaveCheckpoint(ctx, cp, testState{Counter: 8}, 5))

		got, seq, err := st.LoadCheckpoint(ctx, cp)
		require.NoError(t, err)
		require.Equal(t, 5, seq)
		require.Equal(t, 8, got.Counter)
	})
}
