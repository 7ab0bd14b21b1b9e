//go:build windows

package scheduler

import (
	"fmt"
	"syscall"
	"unsafe"
)

// checkDiskSpace checks if there's enough free disk space (Windows).
func (s *Scheduler) checkDiskSpace() error {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceEx := kernel32.NewProc("GetDiskFreeSpaceExW")

	var freeBytes, totalBytes, availBytes uint64

	pathPtr, err := syscall.UTF16PtrFromString(s.config.DownloadPath)
	if err != nil {
		return fmt.Errorf("failed to convert path: %w", err)
	}

	ret, _, err := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytes)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&availBytes)),
	)
	if ret == 0 {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	freeSpaceGB := freeBytes / (1024 * 1024 * 1024)
	if int(freeSpaceGB) < s.config.MinFreeSpaceGB {
		return fmt.Errorf("insufficient disk space: %d GB free, %d GB required",
			freeSpaceGB, s.config.MinFreeSpaceGB)
	}
	return nil
}
