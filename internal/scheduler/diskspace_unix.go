//go:build unix && !linux && !darwin

package scheduler

import (
	"fmt"
	"syscall"
)

// checkDiskSpace checks if there's enough free space available based on config.
func (s *Scheduler) checkDiskSpace() error {
	if s.config.DownloadPath == "" {
		return nil
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.config.DownloadPath, &stat); err != nil {
		return fmt.Errorf("failed to get disk stats: %w", err)
	}

	availableSpace := stat.Bavail * uint64(stat.Bsize)
	requiredSpace := uint64(s.config.MinFreeSpaceGB) * 1024 * 1024 * 1024

	if requiredSpace > 0 && availableSpace < requiredSpace {
		return fmt.Errorf("insufficient disk space: need %d bytes, available %d bytes", requiredSpace, availableSpace)
	}
	return nil
}
