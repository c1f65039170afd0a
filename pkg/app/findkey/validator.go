package findkey

import (
	"os"

	"github.com/deploymenttheory/ps3disc/pkg/app"
)

// Validate checks that the cache directory exists before find_key
// scans it; an empty CacheDir is rejected rather than defaulted here,
// since the default lives in internal/config.
func (r *Request) Validate() error {
	if r.CacheDir == "" {
		return app.NewError(app.ErrCodeInvalidInput, "cache directory is required", nil)
	}
	info, err := os.Stat(r.CacheDir)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "cache directory does not exist", err)
	}
	if !info.IsDir() {
		return app.NewError(app.ErrCodeInvalidInput, "cache directory is not a directory", nil)
	}
	return nil
}
