// Package fsutil holds small file helpers shared by the packages that save
// user files.
package fsutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/asheshgoplani/play-deck/internal/logging"
)

var fsLog = logging.ForComponent(logging.CompFS)

// WriteFileAtomic replaces path with data. The data goes to a uniquely named
// temp file in the same directory, which is synced and renamed over path, so
// readers see the old or the new content and concurrent writers never share a
// temp file. The parent directory must exist.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		// rename still replaces the file atomically
		fsLog.Warn("fsync_failed",
			slog.String("path", tmpPath),
			slog.String("error", err.Error()))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
