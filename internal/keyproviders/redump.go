package keyproviders

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// RedumpProvider enumerates KeyRecords from flat redump key dumps (spec
// §4.1, GLOSSARY "Redump"). A redump key file is a single 32-character hex
// string (16 bytes), optionally with surrounding whitespace; it carries no
// per-file hashes, which is why keys chosen from this provider leave
// validation_status at Unknown (spec §4.7, §8 S5).
type RedumpProvider struct {
	Logger *slog.Logger
}

func (p *RedumpProvider) Kind() types.SourceKind { return types.SourceRedump }

func (p *RedumpProvider) Enumerate(ctx context.Context, cacheDir string, productCode string) ([]types.KeyRecord, []error, error) {
	var records []types.KeyRecord

	warnings := walkFiles(ctx, cacheDir, func(name string) bool {
		return strings.HasSuffix(name, ".dkey") || strings.HasSuffix(name, ".key")
	}, func(path string) error {
		data, err := readCacheFile(ctx, path)
		if err != nil {
			return fmt.Errorf("redump: read %s: %w", path, err)
		}
		rec, err := parseRedumpKey(data)
		if err != nil {
			return fmt.Errorf("redump: parse %s: %w", path, err)
		}
		rec.SourcePath = path
		records = append(records, rec)
		return nil
	})

	for _, w := range warnings {
		p.log().Warn("redump: skipping unparsable entry", "error", w)
	}
	return records, warnings, nil
}

func (p *RedumpProvider) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func parseRedumpKey(data []byte) (types.KeyRecord, error) {
	hexStr := strings.TrimSpace(string(data))
	// Some dumps store the key as raw bytes rather than hex text; hex
	// decoding is attempted first since it's the common case.
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		if len(data) == 16 {
			raw = data
		} else {
			return types.KeyRecord{}, fmt.Errorf("not a 16-byte key: %w", err)
		}
	}
	if len(raw) != 16 {
		return types.KeyRecord{}, fmt.Errorf("decoded key has %d bytes, want 16", len(raw))
	}

	var rec types.KeyRecord
	rec.SourceKind = types.SourceRedump
	copy(rec.DecryptedKey[:], raw)
	return rec, nil
}
