//go:build linux || darwin

package scheduler

import (
	"fmt"
	"syscall"
)

// checkDiskSpace checks if there's enough free disk space (Linux/macOS).
func (s *Scheduler) checkDiskSpace() error {
	if s.config.DownloadPath == "" {
		return nil
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.config.DownloadPath, &stat); err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	freeSpaceGB := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if int(freeSpaceGB) < s.config.MinFreeSpaceGB {
		return fmt.Errorf("insufficient disk space: %d GB free, %d GB required",
			freeSpaceGB, s.config.MinFreeSpaceGB)
	}
	return nil
}
