package discid

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/internal/iso9660"
	"github.com/deploymenttheory/ps3disc/internal/types"
)

type fakeMounts struct{ paths []string }

func (f fakeMounts) EnumerateMounts() ([]string, error) { return f.paths, nil }

type fakeDrives struct{ paths []string }

func (f fakeDrives) EnumerateDrives() ([]string, error) { return f.paths, nil }

// fakeRawDevice is an in-memory RawDevice backing a hand-built ISO-9660
// volume, used to exercise the raw-device matching step (spec §4.3
// step 5) without a real block device.
type fakeRawDevice struct {
	sectors map[uint64][]byte
}

func (d *fakeRawDevice) put(n uint64, data []byte) {
	buf := make([]byte, iso9660.SectorSize)
	copy(buf, data)
	d.sectors[n] = buf
}

func (d *fakeRawDevice) ReadSectors(n, count uint64) ([]byte, error) {
	out := make([]byte, 0, int(count)*iso9660.SectorSize)
	for i := uint64(0); i < count; i++ {
		s, ok := d.sectors[n+i]
		if !ok {
			s = make([]byte, iso9660.SectorSize)
		}
		out = append(out, s...)
	}
	return out, nil
}
func (d *fakeRawDevice) SectorSize() uint64                                     { return iso9660.SectorSize }
func (d *fakeRawDevice) TotalSectors() uint64                                   { return 64 }
func (d *fakeRawDevice) SectorIV(n uint64) ([16]byte, error)                    { return [16]byte{}, nil }
func (d *fakeRawDevice) UnprotectedRegions() ([]types.UnprotectedRegion, error) { return nil, nil }
func (d *fakeRawDevice) Close() error                                           { return nil }

func directoryRecord(name string, extent, size uint32, isDir bool) []byte {
	nameBytes := []byte(name)
	recLen := 33 + len(nameBytes)
	if recLen%2 != 0 {
		recLen++
	}
	b := make([]byte, recLen)
	b[0] = byte(recLen)
	putBoth32(b[2:10], extent)
	putBoth32(b[10:18], size)
	if isDir {
		b[25] = 0x02
	}
	b[32] = byte(len(nameBytes))
	copy(b[33:], nameBytes)
	return b
}

func putBoth32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	b[4], b[5], b[6], b[7] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}

// buildRawDevice builds a minimal valid ISO-9660 volume whose root
// contains a single PS3_DISC.SFB file with the given content.
func buildRawDevice(t *testing.T, sfb []byte) *fakeRawDevice {
	t.Helper()
	dev := &fakeRawDevice{sectors: make(map[uint64][]byte)}

	var root []byte
	root = append(root, directoryRecord(".", 20, iso9660.SectorSize, true)...)
	root = append(root, directoryRecord("..", 20, iso9660.SectorSize, true)...)
	root = append(root, directoryRecord("PS3_DISC.SFB;1", 21, uint32(len(sfb)), false)...)
	dev.put(20, root)
	dev.put(21, sfb)

	pvd := make([]byte, iso9660.SectorSize)
	pvd[0] = 1
	copy(pvd[1:6], []byte("CD001"))
	copy(pvd[156:190], directoryRecord("\x00", 20, iso9660.SectorSize, true))
	dev.put(16, pvd)

	return dev
}

// buildSFO builds a minimal valid PARAM.SFO with TITLE and TITLE_ID.
func buildSFO(t *testing.T, title, titleID string) []byte {
	t.Helper()
	entries := []struct {
		key string
		val string
	}{
		{"TITLE", title},
		{"TITLE_ID", titleID},
	}

	var keyTable, dataTable []byte
	type idx struct{ keyOff, dataOff, dataLen uint32 }
	var idxs []idx
	for _, e := range entries {
		idxs = append(idxs, idx{keyOff: uint32(len(keyTable)), dataOff: uint32(len(dataTable)), dataLen: uint32(len(e.val) + 1)})
		keyTable = append(keyTable, append([]byte(e.key), 0)...)
		dataTable = append(dataTable, append([]byte(e.val), 0)...)
	}

	headerSize := 20
	keyTableStart := headerSize + 16*len(entries)
	dataTableStart := keyTableStart + len(keyTable)

	buf := make([]byte, headerSize)
	copy(buf[0:4], "\x00PSF")
	binary.LittleEndian.PutUint32(buf[4:8], 1)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(keyTableStart))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(dataTableStart))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(entries)))

	for _, e := range idxs {
		var rec [16]byte
		binary.LittleEndian.PutUint16(rec[0:2], uint16(e.keyOff))
		binary.LittleEndian.PutUint16(rec[2:4], 0x0204)
		binary.LittleEndian.PutUint32(rec[4:8], e.dataLen)
		binary.LittleEndian.PutUint32(rec[8:12], e.dataLen)
		binary.LittleEndian.PutUint32(rec[12:16], e.dataOff)
		buf = append(buf, rec[:]...)
	}
	buf = append(buf, keyTable...)
	buf = append(buf, dataTable...)
	return buf
}

func writeMountedDisc(t *testing.T) (dir string, sfbBytes []byte) {
	t.Helper()
	dir = t.TempDir()
	sfbBytes = []byte(".SFBHYBRID_FLAG=g\x00TITLE_ID=BLES01234\x00")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PS3_DISC.SFB"), sfbBytes, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "PS3_GAME"), 0o755))

	sfo := buildSFO(t, "Example Game", "BLES01234")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PS3_GAME", "PARAM.SFO"), sfo, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PS3_GAME", "USRDIR.BIN"), []byte("payload"), 0o644))
	return dir, sfbBytes
}

func TestIdentifier_Identify_FromExplicitDir(t *testing.T) {
	dir, _ := writeMountedDisc(t)

	id := New(nil, nil, nil, nil)
	res, err := id.Identify(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "BLES01234", res.Identity.ProductCode)
	assert.Equal(t, "EU", res.Identity.RegionCode)
	assert.Equal(t, "Example Game", res.Identity.Title)

	var names []string
	for _, f := range res.Files {
		names = append(names, f.SourcePath)
	}
	assert.Contains(t, names, "PS3_DISC.SFB")
}

func TestIdentifier_Identify_NoDiscFound(t *testing.T) {
	dir := t.TempDir()
	id := New(fakeMounts{paths: []string{dir}}, nil, nil, nil)
	_, err := id.Identify(context.Background(), "")
	assert.ErrorIs(t, err, ErrDiscNotFound)
}

func TestIdentifier_MatchPhysicalDevice_Match(t *testing.T) {
	dir, sfbBytes := writeMountedDisc(t)
	dev := buildRawDevice(t, sfbBytes)

	opener := interfaces.RawDeviceOpener(func(path string) (interfaces.RawDevice, error) {
		return dev, nil
	})
	id := New(nil, fakeDrives{paths: []string{"/dev/sr0"}}, opener, nil)

	res, err := id.Identify(context.Background(), dir)
	require.NoError(t, err)

	physicalDevice, _, err := id.MatchPhysicalDevice(context.Background(), res.SFBBytes)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sr0", physicalDevice)
}

func TestIdentifier_MatchPhysicalDevice_NoMatch(t *testing.T) {
	dir, _ := writeMountedDisc(t)
	dev := buildRawDevice(t, []byte(".SFBsomething-else"))

	opener := interfaces.RawDeviceOpener(func(path string) (interfaces.RawDevice, error) {
		return dev, nil
	})
	id := New(nil, fakeDrives{paths: []string{"/dev/sr0"}}, opener, nil)

	res, err := id.Identify(context.Background(), dir)
	require.NoError(t, err)

	_, _, err = id.MatchPhysicalDevice(context.Background(), res.SFBBytes)
	assert.ErrorIs(t, err, ErrNoPhysicalDeviceMatch)
}
