package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureDirectoryWritableAcceptsWritableDir(t *testing.T) {
	assert.NoError(t, EnsureDirectoryWritable(t.TempDir()))
}

func TestEnsureDirectoryWritableRejectsMissingDir(t *testing.T) {
	err := EnsureDirectoryWritable(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestEnsureDirectoryWritableRejectsFileNotDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a-file")
	assert.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	err := EnsureDirectoryWritable(file)
	assert.Error(t, err)
}

func TestAvailableSpaceMBReturnsPositiveForRealPath(t *testing.T) {
	mb := AvailableSpaceMB(t.TempDir())
	assert.Greater(t, mb, uint64(0))
}

func TestLowDiskSpaceTreatsUndeterminableAsNotLow(t *testing.T) {
	low, available := LowDiskSpace("/path/that/does/not/exist/at/all")
	assert.False(t, low)
	assert.Zero(t, available)
}
