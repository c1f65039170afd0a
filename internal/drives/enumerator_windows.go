//go:build windows

package drives

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows"
)

// platformEnumerateDrives probes \\.\CDROM0 through \\.\CDROM31, the
// Windows kernel's fixed naming convention for optical drives, and
// keeps every index that opens successfully.
func platformEnumerateDrives(logger *slog.Logger) ([]string, error) {
	var out []string
	for i := 0; i < 32; i++ {
		path := fmt.Sprintf(`\\.\CDROM%d`, i)
		pathPtr, err := windows.UTF16PtrFromString(path)
		if err != nil {
			return nil, err
		}

		handle, err := windows.CreateFile(
			pathPtr,
			windows.GENERIC_READ,
			windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
			nil,
			windows.OPEN_EXISTING,
			0,
			0,
		)
		if err != nil {
			logger.Debug("drives: skipping unreachable device", "path", path, "error", err)
			continue
		}
		_ = windows.CloseHandle(handle)
		out = append(out, path)
	}
	return out, nil
}
