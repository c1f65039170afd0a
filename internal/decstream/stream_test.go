package decstream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/ps3disc/internal/rawdevice"
	"github.com/deploymenttheory/ps3disc/internal/sectorcipher"
	"github.com/deploymenttheory/ps3disc/internal/types"
)

type fakeDevice struct {
	sectors map[uint64][]byte
	key     [16]byte
}

func (d *fakeDevice) ReadSectors(n, count uint64) ([]byte, error) {
	out := make([]byte, 0, int(count)*sectorcipher.SectorSize)
	for i := uint64(0); i < count; i++ {
		s, ok := d.sectors[n+i]
		if !ok {
			return nil, fmt.Errorf("no sector %d", n+i)
		}
		out = append(out, s...)
	}
	return out, nil
}
func (d *fakeDevice) SectorSize() uint64   { return sectorcipher.SectorSize }
func (d *fakeDevice) TotalSectors() uint64 { return uint64(len(d.sectors)) }
func (d *fakeDevice) SectorIV(n uint64) ([16]byte, error) {
	return rawdevice.DeriveSectorIV(n), nil
}
func (d *fakeDevice) UnprotectedRegions() ([]types.UnprotectedRegion, error) { return nil, nil }
func (d *fakeDevice) Close() error                                           { return nil }

func encryptSector(key [16]byte, iv [16]byte, plaintext []byte) []byte {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, plaintext)
	return out
}

func buildDevice(key [16]byte, plaintextSectors [][]byte, unprotectedAt map[uint64]bool) *fakeDevice {
	dev := &fakeDevice{sectors: make(map[uint64][]byte), key: key}
	for i, pt := range plaintextSectors {
		n := uint64(i)
		if unprotectedAt[n] {
			dev.sectors[n] = pt
			continue
		}
		iv := rawdevice.DeriveSectorIV(n)
		dev.sectors[n] = encryptSector(key, iv, pt)
	}
	return dev
}

func fullSector(b byte) []byte {
	s := make([]byte, sectorcipher.SectorSize)
	for i := range s {
		s[i] = b
	}
	return s
}

func TestStream_DecryptsProtectedSectors(t *testing.T) {
	var key [16]byte
	key[0] = 0xAB
	sectors := [][]byte{fullSector(1), fullSector(2)}
	dev := buildDevice(key, sectors, nil)

	s := New(dev, key, nil, 0, uint64(2*sectorcipher.SectorSize))
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, sectors[0], data[:sectorcipher.SectorSize])
	assert.Equal(t, sectors[1], data[sectorcipher.SectorSize:])

	sum := md5.Sum(data)
	assert.Equal(t, fmt.Sprintf("%x", sum), s.Digests()[types.AlgoMD5])
}

func TestStream_PassesThroughUnprotectedSectors(t *testing.T) {
	var key [16]byte
	key[0] = 0xAB
	sectors := [][]byte{fullSector(9)}
	dev := buildDevice(key, sectors, map[uint64]bool{0: true})

	s := New(dev, key, []types.UnprotectedRegion{{Start: 0, End: 1}}, 0, sectorcipher.SectorSize)
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, sectors[0], data)
}

func TestStream_TruncatesFinalSector(t *testing.T) {
	var key [16]byte
	key[0] = 0xAB
	sectors := [][]byte{fullSector(3)}
	dev := buildDevice(key, sectors, nil)

	s := New(dev, key, nil, 0, 100)
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Len(t, data, 100)
	assert.Equal(t, sectors[0][:100], data)
}

func TestStream_MarksCorruptedOnShortRead(t *testing.T) {
	var key [16]byte
	dev := &fakeDevice{sectors: map[uint64][]byte{}}

	s := New(dev, key, nil, 0, sectorcipher.SectorSize)
	_, err := io.ReadAll(s)
	assert.Error(t, err)
	assert.True(t, s.LastBlockCorrupted())
}

func TestStream_SectorPositionAdvances(t *testing.T) {
	var key [16]byte
	key[0] = 0xAB
	dev := &fakeDevice{sectors: make(map[uint64][]byte), key: key}
	for _, n := range []uint64{5, 6} {
		iv := rawdevice.DeriveSectorIV(n)
		dev.sectors[n] = encryptSector(key, iv, fullSector(byte(n)))
	}

	s := New(dev, key, nil, 5, uint64(2*sectorcipher.SectorSize))
	assert.EqualValues(t, 5, s.SectorPosition())
	buf := make([]byte, sectorcipher.SectorSize)
	_, err := io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.EqualValues(t, 6, s.SectorPosition())
}
