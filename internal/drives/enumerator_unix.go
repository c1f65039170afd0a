//go:build !windows

package drives

import (
	"log/slog"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// cdromDriveStatus is the Linux CDROM_DRIVE_STATUS ioctl request
// number. It is issued on every device that opens; its result is not
// used to filter candidates.
const cdromDriveStatus = 0x5326

// platformEnumerateDrives globs /dev/sr* (the kernel's generic SCSI
// CD-ROM naming convention) and keeps every path that opens read-only,
// regardless of whether a disc is currently loaded.
func platformEnumerateDrives(logger *slog.Logger) ([]string, error) {
	matches, err := filepath.Glob("/dev/sr*")
	if err != nil {
		return nil, err
	}

	var out []string
	for _, path := range matches {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
		if err != nil {
			logger.Debug("drives: skipping unreachable device", "path", path, "error", err)
			continue
		}
		_, _ = unix.IoctlGetInt(fd, cdromDriveStatus)
		_ = unix.Close(fd)
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}
