package iso9660

import (
	"fmt"
	"sort"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// Files returns every regular file on the volume, sorted by disc path for
// deterministic iteration (spec §4.2 "tree walk order").
func (r *Reader) Files() ([]types.FileRecord, error) {
	paths := append([]string(nil), r.orderedFiles...)
	sort.Strings(paths)

	out := make([]types.FileRecord, 0, len(paths))
	for _, p := range paths {
		f := r.files[p]
		out = append(out, types.FileRecord{
			SourcePath:  p,
			StartSector: f.startSector,
			Length:      f.length,
			CTimeUTC:    f.ctime,
			MTimeUTC:    f.mtime,
			ParentDir:   f.parentDir,
		})
	}
	return out, nil
}

// Dirs returns every directory on the volume, including empty ones.
func (r *Reader) Dirs() ([]types.DirRecord, error) {
	paths := append([]string(nil), r.orderedDirs...)
	sort.Strings(paths)

	out := make([]types.DirRecord, 0, len(paths))
	for _, p := range paths {
		d := r.dirs[p]
		out = append(out, types.DirRecord{
			TargetPath: p,
			CTimeUTC:   d.ctime,
			MTimeUTC:   d.mtime,
		})
	}
	return out, nil
}

// FileExists reports whether path exists as a regular file.
func (r *Reader) FileExists(path string) bool {
	_, ok := r.files[path]
	return ok
}

// GetFileInfo returns the FileRecord for path.
func (r *Reader) GetFileInfo(path string) (types.FileRecord, bool) {
	f, ok := r.files[path]
	if !ok {
		return types.FileRecord{}, false
	}
	return types.FileRecord{
		SourcePath:  path,
		StartSector: f.startSector,
		Length:      f.length,
		CTimeUTC:    f.ctime,
		MTimeUTC:    f.mtime,
		ParentDir:   f.parentDir,
	}, true
}

// PathToClusters returns the starting sector and sector length of path.
func (r *Reader) PathToClusters(path string) (start, length uint64, ok bool) {
	f, found := r.files[path]
	if !found {
		return 0, 0, false
	}
	count := (f.length + SectorSize - 1) / SectorSize
	return f.startSector, count, true
}

// ReadFile reads the full contents of a small file such as PS3_DISC.SFB
// or PARAM.SFO. It is not meant for large encrypted payloads, which go
// through the decryption stream instead.
func (r *Reader) ReadFile(path string) ([]byte, error) {
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("iso9660: file not found: %s", path)
	}
	if f.length == 0 {
		return []byte{}, nil
	}
	count := (f.length + SectorSize - 1) / SectorSize
	raw, err := r.src.ReadSectors(f.startSector, count)
	if err != nil {
		return nil, fmt.Errorf("iso9660: read file %s: %w", path, err)
	}
	return raw[:f.length], nil
}
