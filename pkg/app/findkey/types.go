// Package findkey implements the find_key host-boundary operation
// (spec §6), following the same Request/Response/Validate/Handle shape
// as pkg/app/detect.
package findkey

import "github.com/deploymenttheory/ps3disc/internal/types"

// Request carries find_key's one input: the key-cache directory to
// scan (spec §4.1).
type Request struct {
	CacheDir string
}

// Response reports the chosen key and where it came from.
type Response struct {
	KeyID       string
	SourceKind  types.SourceKind
	SourcePath  string
	GameVersion string
}
