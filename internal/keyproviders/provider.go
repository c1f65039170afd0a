// Package keyproviders implements C1 of the dumping engine: enumerating
// decryption-key candidates from a local cache directory. The provider set
// is closed and small (spec §9 "Polymorphic key providers"): a tagged kind
// plus one parse routine per kind, no dynamic dispatch beyond the
// enumeration loop in Enumerate.
package keyproviders

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/deploymenttheory/ps3disc/internal/interfaces"
)

// Providers returns the fixed, ordered provider set: IRD first, Redump
// second, so that when both yield the same key_id, IRD wins the tie-break
// in the key selector (spec §4.1).
func Providers(logger *slog.Logger) []interfaces.KeyProvider {
	return []interfaces.KeyProvider{
		&IRDProvider{Logger: logger},
		&RedumpProvider{Logger: logger},
	}
}

// walkFiles walks cacheDir and invokes visit for every regular file whose
// name matches the predicate. Errors from individual files never abort the
// walk; parse errors are collected by the caller via visit's own return.
func walkFiles(ctx context.Context, cacheDir string, match func(name string) bool, visit func(path string) error) []error {
	var warnings []error
	_ = filepath.WalkDir(cacheDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			warnings = append(warnings, err)
			return nil // keep walking; one bad entry doesn't stop the scan
		}
		if d.IsDir() {
			return nil
		}
		if !match(strings.ToLower(d.Name())) {
			return nil
		}
		if verr := visit(path); verr != nil {
			warnings = append(warnings, verr)
		}
		return nil
	})
	return warnings
}

// readCacheFile reads one key-cache entry with bounded retry: cache
// directories are routinely USB sticks or network shares, where a read
// failing once and succeeding moments later is common enough to be worth
// a couple of attempts rather than dropping the whole record (spec §4.1:
// "errors in a single file are logged and skipped", which this still
// honors once retries are exhausted).
func readCacheFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			b, err := os.ReadFile(path)
			data = b
			return err
		},
		retry.Attempts(3),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	return data, err
}
