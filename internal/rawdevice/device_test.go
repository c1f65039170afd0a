package rawdevice

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeDevice(t *testing.T, regions [][2]uint32, sectors [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disc.img")

	var header []byte
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(regions)))
	header = append(header, count[:]...)
	header = append(header, make([]byte, 4)...) // pad
	for _, r := range regions {
		var pair [8]byte
		binary.BigEndian.PutUint32(pair[0:4], r[0])
		binary.BigEndian.PutUint32(pair[4:8], r[1])
		header = append(header, pair[:]...)
	}

	buf := make([]byte, SectorSize*len(sectors))
	copy(buf, header)
	for i, s := range sectors {
		copy(buf[i*SectorSize:], s)
	}

	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestDevice_ReadSectors(t *testing.T) {
	path := writeFakeDevice(t, nil, [][]byte{[]byte("sector0"), []byte("sector1")})
	dev, err := Open(path)
	require.NoError(t, err)
	defer dev.Close()

	data, err := dev.ReadSectors(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "sector1", string(data[:7]))
}

func TestDevice_TotalSectors(t *testing.T) {
	path := writeFakeDevice(t, nil, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	dev, err := Open(path)
	require.NoError(t, err)
	defer dev.Close()

	assert.EqualValues(t, 3, dev.TotalSectors())
}

func TestDevice_UnprotectedRegions(t *testing.T) {
	path := writeFakeDevice(t, [][2]uint32{{0, 16}, {100, 120}}, make([][]byte, 200))
	dev, err := Open(path)
	require.NoError(t, err)
	defer dev.Close()

	regions, err := dev.UnprotectedRegions()
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.EqualValues(t, 0, regions[0].Start)
	assert.EqualValues(t, 16, regions[0].End)
	assert.EqualValues(t, 100, regions[1].Start)
	assert.EqualValues(t, 120, regions[1].End)
}

func TestDeriveSectorIV_EncodesSectorInLastFourBytes(t *testing.T) {
	iv := DeriveSectorIV(0x01020304)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0x02, 0x03, 0x04}, iv[:])
}

func TestDeriveSectorIV_Deterministic(t *testing.T) {
	assert.Equal(t, DeriveSectorIV(42), DeriveSectorIV(42))
	assert.NotEqual(t, DeriveSectorIV(42), DeriveSectorIV(43))
}
