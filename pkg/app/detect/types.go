// Package detect implements the detect_disc host-boundary operation
// (spec §6), following the teacher's pkg/app/discover layout: a
// Request/Response pair, a Validate method, and a Handle function that
// drives the engine and formats nothing beyond what the caller needs.
package detect

import "github.com/deploymenttheory/ps3disc/internal/types"

// Request carries detect_disc's two optional inputs: an explicit mount
// directory (bypassing drive enumeration) and an output-directory
// naming template.
type Request struct {
	InputDir string
	Template string
}

// Response is what detect_disc reports back to the caller.
type Response struct {
	Identity      types.DiscIdentity
	OutputDirName string
}
