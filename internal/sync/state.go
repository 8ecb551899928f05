package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/controlvector/cv-core/internal/model"
)

// stateDir and stateFile name the crash-safe SyncState location spec.md §4.6
// describes: a workspace-local .cv/ directory, so a sync survives process
// restarts without a separate database.
const (
	stateDir  = ".cv"
	stateFile = "sync-state.json"
)

// StatePath returns the on-disk path for repoPath's SyncState file.
func StatePath(repoPath string) string {
	return filepath.Join(repoPath, stateDir, stateFile)
}

// LoadState reads a repository's prior SyncState. A missing file is not an
// error: it returns the zero value and ok=false, signaling that the caller
// should run a FullSync instead of an IncrementalSync.
func LoadState(repoPath string) (model.SyncState, bool, error) {
	data, err := os.ReadFile(StatePath(repoPath))
	if err != nil {
		if os.IsNotExist(err) {
			return model.SyncState{}, false, nil
		}
		return model.SyncState{}, false, fmt.Errorf("failed to read sync state: %w", err)
	}
	var state model.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.SyncState{}, false, fmt.Errorf("failed to parse sync state: %w", err)
	}
	return state, true, nil
}

// SaveState persists state to repoPath's .cv/ directory, creating it if
// necessary.
func SaveState(repoPath string, state model.SyncState) error {
	dir := filepath.Join(repoPath, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(StatePath(repoPath), data, 0o644)
}
