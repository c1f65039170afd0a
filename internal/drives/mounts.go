package drives

import "log/slog"

// MountEnumerator implements interfaces.MountEnumerator by listing the
// filesystem paths at which optical media is currently mounted (spec
// §4.3 step 1). Platform-specific discovery lives behind build tags in
// mounts_unix.go / mounts_windows.go.
type MountEnumerator struct {
	Logger *slog.Logger
}

// NewMountEnumerator returns a MountEnumerator.
func NewMountEnumerator(logger *slog.Logger) *MountEnumerator {
	return &MountEnumerator{Logger: logger}
}

// EnumerateMounts lists every mount point this platform reports as
// optical media. It never fails outright for an individual unreachable
// mount; those are simply omitted.
func (m *MountEnumerator) EnumerateMounts() ([]string, error) {
	return platformEnumerateMounts(m.log())
}

func (m *MountEnumerator) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
