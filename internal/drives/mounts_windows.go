//go:build windows

package drives

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows"
)

// platformEnumerateMounts checks every drive letter A: through Z: and
// keeps the ones GetDriveType reports as DRIVE_CDROM, regardless of
// whether a disc is currently loaded in that drive.
func platformEnumerateMounts(logger *slog.Logger) ([]string, error) {
	var out []string
	for c := 'A'; c <= 'Z'; c++ {
		path := fmt.Sprintf(`%c:\`, c)
		pathPtr, err := windows.UTF16PtrFromString(path)
		if err != nil {
			return nil, err
		}
		driveType := windows.GetDriveType(pathPtr)
		if driveType == windows.DRIVE_CDROM {
			out = append(out, path)
		}
	}
	return out, nil
}
