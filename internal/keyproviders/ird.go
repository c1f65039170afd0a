package keyproviders

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// IRDProvider enumerates KeyRecords from .ird archives (spec §4.1, §6
// "IRD format"). The archive layout parsed here is the subset this engine
// needs: product code, game/app version, the two decrypted keys, and the
// per-file MD5 table. The real format also carries zlib-compressed ISO
// header/footer snapshots and a region hash table; this engine has no use
// for disc-image reconstruction, so those blocks are skipped by length
// rather than decompressed.
type IRDProvider struct {
	Logger *slog.Logger
}

func (p *IRDProvider) Kind() types.SourceKind { return types.SourceIRD }

func (p *IRDProvider) Enumerate(ctx context.Context, cacheDir string, productCode string) ([]types.KeyRecord, []error, error) {
	var records []types.KeyRecord

	warnings := walkFiles(ctx, cacheDir, func(name string) bool {
		return strings.HasSuffix(name, ".ird")
	}, func(path string) error {
		data, err := readCacheFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ird: read %s: %w", path, err)
		}
		rec, err := parseIRD(data)
		if err != nil {
			return fmt.Errorf("ird: parse %s: %w", path, err)
		}
		rec.SourcePath = path
		records = append(records, rec)
		return nil
	})

	for _, w := range warnings {
		p.log().Warn("ird: skipping unparsable entry", "error", w)
	}
	return records, warnings, nil
}

func (p *IRDProvider) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

const irdMagic = "3IRD"

// irdReader is a small bounds-checked cursor over an in-memory IRD buffer.
type irdReader struct {
	buf []byte
	pos int
}

func (r *irdReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of IRD data at offset %d (need %d bytes)", r.pos, n)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *irdReader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *irdReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *irdReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *irdReader) skip(n uint32) error {
	_, err := r.take(int(n))
	return err
}

func parseIRD(data []byte) (types.KeyRecord, error) {
	r := &irdReader{buf: data}

	magic, err := r.take(len(irdMagic))
	if err != nil {
		return types.KeyRecord{}, err
	}
	if !bytes.Equal(magic, []byte(irdMagic)) {
		return types.KeyRecord{}, fmt.Errorf("not an IRD file (bad magic)")
	}

	if _, err := r.byte(); err != nil { // version
		return types.KeyRecord{}, err
	}

	productCodeRaw, err := r.take(9)
	if err != nil {
		return types.KeyRecord{}, err
	}
	productCode := strings.TrimRight(string(productCodeRaw), "\x00")

	nameLen, err := r.byte()
	if err != nil {
		return types.KeyRecord{}, err
	}
	if _, err := r.take(int(nameLen)); err != nil { // title, unused here
		return types.KeyRecord{}, err
	}

	updateVer, err := r.take(4)
	if err != nil {
		return types.KeyRecord{}, err
	}
	gameVer, err := r.take(5)
	if err != nil {
		return types.KeyRecord{}, err
	}
	appVer, err := r.take(5)
	if err != nil {
		return types.KeyRecord{}, err
	}
	_ = updateVer
	_ = appVer

	headerLen, err := r.uint32()
	if err != nil {
		return types.KeyRecord{}, err
	}
	if err := r.skip(headerLen); err != nil {
		return types.KeyRecord{}, err
	}

	footerLen, err := r.uint32()
	if err != nil {
		return types.KeyRecord{}, err
	}
	if err := r.skip(footerLen); err != nil {
		return types.KeyRecord{}, err
	}

	regionCount, err := r.byte()
	if err != nil {
		return types.KeyRecord{}, err
	}
	if err := r.skip(uint32(regionCount) * 16); err != nil {
		return types.KeyRecord{}, err
	}

	fileCount, err := r.uint32()
	if err != nil {
		return types.KeyRecord{}, err
	}
	hashes := make([]types.IRDFileHash, 0, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		sector, err := r.uint64()
		if err != nil {
			return types.KeyRecord{}, err
		}
		md5Bytes, err := r.take(16)
		if err != nil {
			return types.KeyRecord{}, err
		}
		var h types.IRDFileHash
		h.StartSector = sector
		copy(h.MD5[:], md5Bytes)
		hashes = append(hashes, h)
	}

	data1, err := r.take(16)
	if err != nil {
		return types.KeyRecord{}, err
	}
	data2, err := r.take(16)
	if err != nil {
		return types.KeyRecord{}, err
	}
	_ = data2 // update-partition key; not used for dumping the game partition

	rec := types.KeyRecord{
		SourceKind:    types.SourceIRD,
		GameVersion:   strings.TrimRight(string(gameVer), "\x00 "),
		RawFileHashes: hashes,
	}
	copy(rec.DecryptedKey[:], data1)
	_ = productCode
	return rec, nil
}
