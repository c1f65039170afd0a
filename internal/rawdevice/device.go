// Package rawdevice implements the sector-addressed raw block device
// seam (spec §6 "Raw block device", C8). A Device wraps a plain
// *os.File opened on a platform device path; sector I/O, the sector
// IV, and the unprotected-region map are all derived without any
// platform-specific syscalls, following the same on-disc layout the
// community ps3netsrv server reads from PS3 Blu-ray media.
package rawdevice

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// SectorSize is the logical sector size of PS3 Blu-ray media.
const SectorSize = 2048

// Device is a read-only raw block device backed by an *os.File.
type Device struct {
	f     *os.File
	total uint64

	mu      sync.Mutex
	regions []types.UnprotectedRegion
	loaded  bool
}

// Open opens path (a platform device path, e.g. /dev/sr0 or
// \\.\CDROM0) for raw sector reads.
func Open(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rawdevice: open %s: %w", path, err)
	}

	var total uint64
	if size, err := deviceSize(f); err == nil && size > 0 {
		total = uint64(size) / SectorSize
	}

	return &Device{f: f, total: total}, nil
}

func deviceSize(f *os.File) (int64, error) {
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		return info.Size(), nil
	}
	// Block devices often report a zero regular-file size; fall back to
	// seeking to the end, which works for both files and block devices.
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}

// ReadSectors reads count sectors starting at sector n.
func (d *Device) ReadSectors(n uint64, count uint64) ([]byte, error) {
	buf := make([]byte, count*SectorSize)
	if _, err := d.f.ReadAt(buf, int64(n*SectorSize)); err != nil {
		return nil, fmt.Errorf("rawdevice: read sectors [%d, %d): %w", n, n+count, err)
	}
	return buf, nil
}

// SectorSize returns the device's logical sector size.
func (d *Device) SectorSize() uint64 { return SectorSize }

// TotalSectors returns the whole-disc sector count, or 0 if it could
// not be determined at Open.
func (d *Device) TotalSectors() uint64 { return d.total }

// SectorIV derives the per-sector AES-CBC IV: a zero block with the
// big-endian sector number in its last four bytes (the convention the
// PS3 disc-crypto tooling in the wild uses universally).
func (d *Device) SectorIV(n uint64) ([16]byte, error) {
	return DeriveSectorIV(n), nil
}

// DeriveSectorIV is the pure function behind SectorIV, exported so the
// key selector and tests can compute it without a Device.
func DeriveSectorIV(sector uint64) [16]byte {
	var iv [16]byte
	binary.BigEndian.PutUint32(iv[12:], uint32(sector))
	return iv
}

// UnprotectedRegions reads the region map ps3netsrv-style tooling reads
// from the start of a PS3 disc image: a region count, four bytes of
// padding, then that many (start, end) sector-range pairs, all
// big-endian, each one an unprotected (plaintext) span. The map is read
// once and cached.
func (d *Device) UnprotectedRegions() ([]types.UnprotectedRegion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return d.regions, nil
	}

	header := make([]byte, 8)
	if _, err := d.f.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("rawdevice: read region header: %w", err)
	}
	count := binary.BigEndian.Uint32(header[0:4])
	if count == 0 {
		d.loaded = true
		return nil, nil
	}

	raw := make([]byte, int(count)*8)
	if _, err := d.f.ReadAt(raw, 8); err != nil {
		return nil, fmt.Errorf("rawdevice: read region table: %w", err)
	}

	regions := make([]types.UnprotectedRegion, 0, count)
	for i := uint32(0); i < count; i++ {
		start := binary.BigEndian.Uint32(raw[i*8 : i*8+4])
		end := binary.BigEndian.Uint32(raw[i*8+4 : i*8+8])
		regions = append(regions, types.UnprotectedRegion{Start: uint64(start), End: uint64(end)})
	}

	d.regions = regions
	d.loaded = true
	return regions, nil
}

// Close releases the underlying file handle.
func (d *Device) Close() error {
	return d.f.Close()
}
