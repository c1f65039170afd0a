// Package iso9660 implements a minimal ISO-9660 volume reader over a
// sector source: enough to walk the directory tree and resolve small
// files (PS3_DISC.SFB, PARAM.SFO) without pulling in a mount layer. The
// record layout follows ECMA-119 as read by adriagipas's cdread package;
// Rock Ridge / Joliet extensions are not interpreted (spec §1 Non-goals:
// "arbitrary ISO-9660 extensions").
package iso9660

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// SectorSize is the logical sector size for PS3 Blu-ray media; ISO-9660
// logical block size on these discs is always equal to it.
const SectorSize = 2048

const (
	fileFlagDirectory   = 0x02
	fileFlagMultiExtent = 0x80
)

// SectorSource is the minimal read seam a Reader needs: random access to
// whole logical sectors. A RawDevice or an os.File opened on a mounted
// ISO image both satisfy it trivially.
type SectorSource interface {
	ReadSectors(n uint64, count uint64) ([]byte, error)
}

// Reader parses a primary volume descriptor and its directory tree on
// construction, then serves Files/Dirs/ReadFile from the in-memory index.
type Reader struct {
	src          SectorSource
	rootStart    uint32
	rootLength   uint32
	files        map[string]fileEntry
	dirs         map[string]dirEntry
	orderedFiles []string
	orderedDirs  []string
}

type fileEntry struct {
	startSector uint64
	length      uint64
	ctime       time.Time
	mtime       time.Time
	parentDir   string
}

type dirEntry struct {
	ctime time.Time
	mtime time.Time
}

// Open reads the primary volume descriptor at sector 16 and walks the
// entire directory tree rooted there.
func Open(src SectorSource) (*Reader, error) {
	pvd, err := src.ReadSectors(16, 1)
	if err != nil {
		return nil, fmt.Errorf("iso9660: read primary volume descriptor: %w", err)
	}
	if len(pvd) < 2048 || pvd[0] != 1 || !bytes.Equal(pvd[1:6], []byte("CD001")) {
		return nil, errors.New("iso9660: sector 16 is not a primary volume descriptor")
	}

	var root direntHeader
	if err := root.parse(pvd[156:190]); err != nil {
		return nil, fmt.Errorf("iso9660: root directory record: %w", err)
	}

	r := &Reader{
		src:        src,
		rootStart:  root.extent,
		rootLength: root.size,
		files:      make(map[string]fileEntry),
		dirs:       make(map[string]dirEntry),
	}
	if err := r.walk("", root.extent, root.size); err != nil {
		return nil, err
	}
	return r, nil
}

// walk reads one directory's extent and recurses into subdirectories,
// skipping the "." and ".." self-entries.
func (r *Reader) walk(parent string, extent, size uint32) error {
	count := (uint64(size) + SectorSize - 1) / SectorSize
	raw, err := r.src.ReadSectors(uint64(extent), count)
	if err != nil {
		return fmt.Errorf("iso9660: read directory extent at %d: %w", extent, err)
	}
	raw = raw[:size]

	dirPath := parent
	if dirPath == "" {
		// Subdirectories are registered by their parent's record before
		// the recursion; only the root is registered here.
		dirPath = "/"
		r.dirs[dirPath] = dirEntry{}
		r.orderedDirs = append(r.orderedDirs, dirPath)
	}

	for p := raw; len(p) > 0 && p[0] != 0; {
		recLen := uint8(p[0])
		if int(recLen) > len(p) {
			break
		}
		var d direntHeader
		if err := d.parse(p[:recLen]); err != nil {
			return err
		}
		p = p[recLen:]

		if d.name == "." || d.name == ".." {
			continue
		}
		if d.flags&fileFlagMultiExtent != 0 {
			return fmt.Errorf("iso9660: multi-extent entries are not supported (%q)", d.name)
		}

		childPath := joinDiscPath(parent, d.name)
		when := d.recordedAt

		if d.flags&fileFlagDirectory != 0 {
			r.dirs[childPath] = dirEntry{ctime: when, mtime: when}
			r.orderedDirs = append(r.orderedDirs, childPath)
			if err := r.walk(childPath, d.extent, d.size); err != nil {
				return err
			}
			continue
		}

		r.files[childPath] = fileEntry{
			startSector: uint64(d.extent),
			length:      uint64(d.size),
			ctime:       when,
			mtime:       when,
			parentDir:   dirPath,
		}
		r.orderedFiles = append(r.orderedFiles, childPath)
	}
	return nil
}

// joinDiscPath joins a disc-relative parent and a raw directory-record
// identifier using the backslash convention PS3 disc layouts use, and
// strips the ";1" version suffix ISO-9660 appends to file identifiers.
func joinDiscPath(parent, name string) string {
	name = stripVersionSuffix(name)
	if parent == "" {
		return name
	}
	return parent + `\` + name
}

func stripVersionSuffix(name string) string {
	if i := bytes.IndexByte([]byte(name), ';'); i >= 0 {
		return name[:i]
	}
	return name
}
