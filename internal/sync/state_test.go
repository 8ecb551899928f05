package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlvector/cv-core/internal/model"
)

func TestLoadStateMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()

	state, ok, err := LoadState(dir)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.SyncState{}, state)
}

func TestSaveAndLoadStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := model.SyncState{
		RepoID:        "repo1",
		HeadCommitSHA: "abc123",
		FileHashes:    map[string]string{"a.go": "hash-a", "b.go": "hash-b"},
		FilesIndexed:  2,
		SymbolsFound:  5,
	}

	require.NoError(t, SaveState(dir, want))

	got, ok, err := LoadState(dir)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStatePathIsUnderDotCV(t *testing.T) {
	path := StatePath("/repos/foo")
	assert.Equal(t, "/repos/foo/.cv/sync-state.json", path)
}
