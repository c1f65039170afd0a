// Package drives implements C8's platform drive enumeration: listing
// candidate raw optical device paths for the disc identifier and the
// dump controller to probe. The actual enumeration is platform-specific
// and lives behind build tags in enumerator_unix.go / enumerator_windows.go.
package drives

import "log/slog"

// Enumerator implements interfaces.DriveEnumerator.
type Enumerator struct {
	Logger *slog.Logger
}

// New returns an Enumerator.
func New(logger *slog.Logger) *Enumerator {
	return &Enumerator{Logger: logger}
}

// EnumerateDrives lists every candidate raw optical device path this
// platform exposes. It never fails outright for an individual
// unreachable device; those are simply omitted.
func (e *Enumerator) EnumerateDrives() ([]string, error) {
	return platformEnumerateDrives(e.log())
}

func (e *Enumerator) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
