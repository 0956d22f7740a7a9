// Package util provides small filesystem preflight checks used by the
// process supervisor, trimmed from the
// teacher's internal/util/tempfile.go (which additionally managed
// scratch temp-dir lifecycles the chunked encoder no longer needs here)
// down to the disk-space check still exercised by internal/supervisor.
package util

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MinFreeSpaceMB is the minimum free space recommended before starting
// a transcode (a failed ffmpeg run from a full disk is harder to
// diagnose than a log warning beforehand).
const MinFreeSpaceMB = 250

// EnsureDirectoryWritable checks if a directory exists and is writable.
func EnsureDirectoryWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testPath := filepath.Join(path, ".ffgo_write_test")
	f, err := os.Create(testPath)
	if err != nil {
		return fmt.Errorf("directory is not writable: %s", path)
	}
	_ = f.Close()
	_ = os.Remove(testPath)
	return nil
}

// AvailableSpaceMB returns the available disk space in MB for path's
// filesystem, or 0 if it cannot be determined.
func AvailableSpaceMB(path string) uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0
	}
	return (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024)
}

// LowDiskSpace reports whether path's filesystem has less than
// MinFreeSpaceMB available. A zero (undeterminable) reading is treated
// as not low, since failing closed here would block transcodes on
// filesystems unix.Statfs can't introspect.
func LowDiskSpace(path string) (low bool, availableMB uint64) {
	availableMB = AvailableSpaceMB(path)
	if availableMB == 0 {
		return false, 0
	}
	return availableMB < MinFreeSpaceMB, availableMB
}
