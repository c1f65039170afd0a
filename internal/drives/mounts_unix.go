//go:build !windows

package drives

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
)

// isoFilesystemTypes are the mount table fstype values the kernel
// reports for optical media mounted via a loop or real CD-ROM driver.
var isoFilesystemTypes = map[string]bool{
	"iso9660": true,
	"udf":     true,
}

// platformEnumerateMounts reads /proc/mounts (the same source `mount`
// itself reads) and keeps every mount point whose filesystem type is
// iso9660 or udf, the two filesystems PS3 Blu-ray discs are mastered
// with.
func platformEnumerateMounts(logger *slog.Logger) ([]string, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		logger.Debug("drives: could not read /proc/mounts", "error", err)
		return nil, nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if isoFilesystemTypes[fsType] {
			out = append(out, mountPoint)
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}
