// Package interfaces collects the seams between the dumping engine's
// components and their external collaborators (the raw block device, the
// ISO-9660 reader, the key cache, the platform drive enumerator), mirroring
// the narrow, read-oriented interfaces the teacher defines in
// internal/interfaces/block_device.go.
package interfaces

import (
	"context"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// RawDevice is the raw, sector-addressed view of the disc block device
// (spec §6 "Raw block device"). It is read-only: the engine never writes
// to the source disc (spec §1 Non-goals).
type RawDevice interface {
	// ReadSectors reads count sectors starting at sector n, returning
	// exactly count*SectorSize() bytes or an error.
	ReadSectors(n uint64, count uint64) ([]byte, error)

	// SectorSize returns the device's sector size in bytes (2048 for
	// PS3 Blu-ray discs).
	SectorSize() uint64

	// TotalSectors returns the whole-disc sector count.
	TotalSectors() uint64

	// SectorIV returns the 16-byte IV for sector n. The engine treats the
	// value as opaque input to the sector cipher.
	SectorIV(n uint64) ([16]byte, error)

	// UnprotectedRegions returns the disc's unprotected sector ranges,
	// fetched once and cached by the caller.
	UnprotectedRegions() ([]types.UnprotectedRegion, error)

	Close() error
}

// ISO9660Reader is the filesystem-metadata view obtained from either the
// mounted disc or a raw device positioned at sector 0 (spec §1: "assumed
// available as a library").
type ISO9660Reader interface {
	// Files returns every regular file on the volume.
	Files() ([]types.FileRecord, error)

	// Dirs returns every directory on the volume, including empty ones.
	Dirs() ([]types.DirRecord, error)

	// FileExists reports whether path exists as a regular file.
	FileExists(path string) bool

	// GetFileInfo returns the FileRecord for path.
	GetFileInfo(path string) (types.FileRecord, bool)

	// PathToClusters returns the cluster (sector) range for a file path.
	PathToClusters(path string) (start, length uint64, ok bool)

	// ReadFile reads the raw bytes of a small file (used for SFB/SFO,
	// never for large encrypted payloads).
	ReadFile(path string) ([]byte, error)
}

// KeyProvider enumerates KeyRecords from one kind of cache-directory
// source (spec §4.1, C1). Implementations never fail the overall
// enumeration: parse errors for individual files are returned in the
// warnings slice, not as the error return.
type KeyProvider interface {
	Kind() types.SourceKind
	Enumerate(ctx context.Context, cacheDir string, productCode string) (records []types.KeyRecord, warnings []error, err error)
}

// DriveEnumerator lists candidate raw optical device paths (spec §4.8,
// C8). Platform-specific implementations live behind build tags in
// internal/drives.
type DriveEnumerator interface {
	EnumerateDrives() ([]string, error)
}

// MountEnumerator lists the filesystem paths at which optical media is
// currently mounted, distinct from the raw device paths DriveEnumerator
// returns: a mounted disc is read through the host OS's own ISO-9660
// driver rather than this engine's sector-addressed reader (spec §4.3
// step 1).
type MountEnumerator interface {
	EnumerateMounts() ([]string, error)
}

// RawDeviceOpener opens the raw device at path for sector-addressed
// reads (spec §4.3 step 5, C8's platform implementations).
type RawDeviceOpener func(path string) (RawDevice, error)
