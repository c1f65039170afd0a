package rawdevice

import (
	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/internal/types"
)

// CacheBytes is how much of the device the engine preloads before
// handing it to an ISO-9660 reader (spec §4.6 step 1: "reading
// the first 64 MiB of the raw device into memory ... avoids seek
// storms").
const CacheBytes = 64 * 1024 * 1024

// CachingSource wraps a RawDevice, serving ReadSectors out of an
// in-memory preload of the device's first CacheBytes whenever the
// request falls entirely within that range, and falling through to
// the live device otherwise. Every other RawDevice method is
// delegated unchanged, so a CachingSource is itself a RawDevice and
// can be handed straight to the decryption stream or the dump
// controller once built.
type CachingSource struct {
	device interfaces.RawDevice
	cached []byte
	sector uint64 // number of whole sectors covered by cached
}

// NewCachingSource reads up to CacheBytes from device into memory. A
// short device (fewer total sectors than the cache would cover) is
// preloaded in full; a read error while preloading is not fatal here —
// the cache simply covers less than requested, and callers fall back
// to the live device for anything beyond it.
func NewCachingSource(device interfaces.RawDevice) *CachingSource {
	sectorSize := device.SectorSize()
	if sectorSize == 0 {
		return &CachingSource{device: device}
	}

	want := uint64(CacheBytes) / sectorSize
	if total := device.TotalSectors(); total > 0 && total < want {
		want = total
	}
	if want == 0 {
		return &CachingSource{device: device}
	}

	data, err := device.ReadSectors(0, want)
	if err != nil {
		return &CachingSource{device: device}
	}
	return &CachingSource{device: device, cached: data, sector: want}
}

// ReadSectors serves entirely from the in-memory cache when [n, n+count)
// is covered by it, otherwise delegates to the underlying device.
func (c *CachingSource) ReadSectors(n uint64, count uint64) ([]byte, error) {
	if c.cached != nil && n+count <= c.sector {
		size := c.device.SectorSize()
		start := n * size
		end := (n + count) * size
		return c.cached[start:end], nil
	}
	return c.device.ReadSectors(n, count)
}

func (c *CachingSource) SectorSize() uint64                  { return c.device.SectorSize() }
func (c *CachingSource) TotalSectors() uint64                { return c.device.TotalSectors() }
func (c *CachingSource) SectorIV(n uint64) ([16]byte, error) { return c.device.SectorIV(n) }
func (c *CachingSource) UnprotectedRegions() ([]types.UnprotectedRegion, error) {
	return c.device.UnprotectedRegions()
}
func (c *CachingSource) Close() error { return c.device.Close() }
