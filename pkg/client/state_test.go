package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestState(t *testing.T) *State {
	t.Helper()
	state, err := OpenState(filepath.Join(t.TempDir(), "state", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })
	return state
}

func TestOpenStateCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	state, err := OpenState(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer state.Close()

	assert.DirExists(t, dir)
}

func TestStateConfig(t *testing.T) {
	state := openTestState(t)

	value, err := state.GetConfig("theme")
	require.NoError(t, err)
	assert.Empty(t, value, "missing keys read as empty")

	require.NoError(t, state.SetConfig("theme", "dark"))
	require.NoError(t, state.SetConfig("theme", "light"))

	value, err = state.GetConfig("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", value)
}

func TestStateConnectionHistory(t *testing.T) {
	state := openTestState(t)

	last, err := state.GetLastConnection()
	require.NoError(t, err)
	assert.Nil(t, last, "no history yet")

	require.NoError(t, state.SaveSuccessfulConnection("ws://a/ws"))
	require.NoError(t, state.SaveSuccessfulConnection("ws://a/ws"))
	require.NoError(t, state.SaveSuccessfulConnection("ws://b/ws"))

	rec, err := state.GetConnection("ws://a/ws")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ws://a/ws", rec.Address)
	assert.Equal(t, int64(2), rec.ConnectCount)
	assert.False(t, rec.LastSuccessAt.IsZero())

	missing, err := state.GetConnection("ws://c/ws")
	require.NoError(t, err)
	assert.Nil(t, missing)

	last, err = state.GetLastConnection()
	require.NoError(t, err)
	require.NotNil(t, last)
	// Same second for both: the busier address wins the tie
	assert.Contains(t, []string{"ws://a/ws", "ws://b/ws"}, last.Address)
}

func TestStateReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	state, err := OpenState(path)
	require.NoError(t, err)
	require.NoError(t, state.SetConfig("k", "v"))
	require.NoError(t, state.SaveSuccessfulConnection("ws://a/ws"))
	require.NoError(t, state.Close())

	// Migrations must not run twice
	state, err = OpenState(path)
	require.NoError(t, err)
	defer state.Close()

	value, err := state.GetConfig("k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	rec, err := state.GetConnection("ws://a/ws")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.ConnectCount)
}

func TestMockStateMatchesState(t *testing.T) {
	for name, state := range map[string]StateInterface{
		"sqlite": openTestState(t),
		"mock":   NewMockState(),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, state.SetConfig("k", "v"))
			v, err := state.GetConfig("k")
			require.NoError(t, err)
			assert.Equal(t, "v", v)

			require.NoError(t, state.SaveSuccessfulConnection("ws://x/ws"))
			rec, err := state.GetLastConnection()
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "ws://x/ws", rec.Address)
			assert.Equal(t, int64(1), rec.ConnectCount)
		})
	}
}
