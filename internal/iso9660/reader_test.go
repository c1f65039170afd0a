package iso9660

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource is an in-memory SectorSource backing a hand-built volume.
type memSource struct {
	sectors map[uint64][]byte
}

func newMemSource() *memSource {
	return &memSource{sectors: make(map[uint64][]byte)}
}

func (m *memSource) put(n uint64, data []byte) {
	buf := make([]byte, SectorSize)
	copy(buf, data)
	m.sectors[n] = buf
}

func (m *memSource) ReadSectors(n uint64, count uint64) ([]byte, error) {
	out := make([]byte, 0, int(count)*SectorSize)
	for i := uint64(0); i < count; i++ {
		s, ok := m.sectors[n+i]
		if !ok {
			s = make([]byte, SectorSize)
		}
		out = append(out, s...)
	}
	return out, nil
}

// direntBytes builds one directory record with a both-byte-order extent
// and size field and an all-zero recording date/time (treated as
// "unknown" rather than invalid).
func direntBytes(name string, extent, size uint32, flags uint8) []byte {
	nameBytes := []byte(name)
	recLen := 33 + len(nameBytes)
	if recLen%2 != 0 {
		recLen++ // padding byte
	}
	b := make([]byte, recLen)
	b[0] = byte(recLen)
	putBoth32(b[2:10], extent)
	putBoth32(b[10:18], size)
	// bytes 18:25 left zero => parseRecordingDateTime returns zero time
	b[25] = flags
	b[32] = byte(len(nameBytes))
	copy(b[33:], nameBytes)
	return b
}

func putBoth32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}

func buildVolume(t *testing.T) *memSource {
	t.Helper()
	src := newMemSource()

	// Root directory at sector 20, one regular file PS3_DISC.SFB and one
	// subdirectory PS3_GAME.
	var root []byte
	root = append(root, direntBytes(".", 20, SectorSize, fileFlagDirectory)...)
	root = append(root, direntBytes("..", 20, SectorSize, fileFlagDirectory)...)
	root = append(root, direntBytes("PS3_DISC.SFB;1", 21, 11, 0)...)
	root = append(root, direntBytes("PS3_GAME", 22, SectorSize, fileFlagDirectory)...)
	src.put(20, root)

	src.put(21, []byte("hello world"))

	var sub []byte
	sub = append(sub, direntBytes(".", 22, SectorSize, fileFlagDirectory)...)
	sub = append(sub, direntBytes("..", 20, SectorSize, fileFlagDirectory)...)
	sub = append(sub, direntBytes("PARAM.SFO;1", 23, 4, 0)...)
	src.put(22, sub)

	src.put(23, []byte("sfo!"))

	// Primary volume descriptor at sector 16.
	pvd := make([]byte, SectorSize)
	pvd[0] = 1
	copy(pvd[1:6], []byte("CD001"))
	copy(pvd[156:190], direntBytes("\x00", 20, SectorSize, fileFlagDirectory))
	src.put(16, pvd)

	return src
}

func TestReader_FilesAndDirs(t *testing.T) {
	src := buildVolume(t)
	r, err := Open(src)
	require.NoError(t, err)

	files, err := r.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "PS3_DISC.SFB", files[0].SourcePath)
	assert.Equal(t, `PS3_GAME\PARAM.SFO`, files[1].SourcePath)

	dirs, err := r.Dirs()
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.Equal(t, "/", dirs[0].TargetPath)
	assert.Equal(t, "PS3_GAME", dirs[1].TargetPath)
}

func TestReader_ReadFile(t *testing.T) {
	src := buildVolume(t)
	r, err := Open(src)
	require.NoError(t, err)

	data, err := r.ReadFile("PS3_DISC.SFB")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	data, err = r.ReadFile(`PS3_GAME\PARAM.SFO`)
	require.NoError(t, err)
	assert.Equal(t, "sfo!", string(data))
}

func TestReader_FileExistsAndClusters(t *testing.T) {
	src := buildVolume(t)
	r, err := Open(src)
	require.NoError(t, err)

	assert.True(t, r.FileExists("PS3_DISC.SFB"))
	assert.False(t, r.FileExists("NOPE.BIN"))

	start, length, ok := r.PathToClusters("PS3_DISC.SFB")
	require.True(t, ok)
	assert.EqualValues(t, 21, start)
	assert.EqualValues(t, 1, length)
}
