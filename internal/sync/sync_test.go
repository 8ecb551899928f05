package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/config"
)

func TestMatchesExcludePattern(t *testing.T) {
	assert.True(t, matchesExcludePattern("/repo/vendor/lib.go", []string{"vendor/*"}))
	assert.True(t, matchesExcludePattern("/repo/pkg/foo_test.go", []string{"*_test.go"}))
	assert.False(t, matchesExcludePattern("/repo/pkg/foo.go", []string{"*_test.go"}))
}

func TestNumWorkersDefaultsWhenUnset(t *testing.T) {
	e := New(config.SyncConfig{}, nil, nil, nil, nil, zap.NewNop(), nil)
	assert.Equal(t, int64(DefaultNumWorkers), e.numWorkers())
}

func TestNumWorkersUsesConfiguredValue(t *testing.T) {
	e := New(config.SyncConfig{NumWorkers: 3}, nil, nil, nil, nil, zap.NewNop(), nil)
	assert.Equal(t, int64(3), e.numWorkers())
}

func TestChunkMaxLinesDefaultsWhenUnset(t *testing.T) {
	e := New(config.SyncConfig{}, nil, nil, nil, nil, zap.NewNop(), nil)
	assert.Equal(t, 200, e.chunkMaxLines())
}

func TestEnumerateSkipsUnsupportedAndExcludedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendored_test.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "lib.go"), []byte("package lib\n"), 0o644))

	e := New(config.SyncConfig{ExcludePatterns: []string{"*_test.go"}}, nil, nil, nil, nil, zap.NewNop(), nil)

	units, err := e.enumerate(context.Background(), dir)

	require.NoError(t, err)
	var paths []string
	for _, u := range units {
		paths = append(paths, u.relPath)
	}
	assert.Contains(t, paths, "main.go")
	assert.NotContains(t, paths, "image.png")
	assert.NotContains(t, paths, "vendored_test.go")
	assert.NotContains(t, paths, "node_modules/lib.go")
}
