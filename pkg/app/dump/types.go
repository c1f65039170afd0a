// Package dump implements the dump host-boundary operation (spec §6),
// following the same Request/Response/Validate/Handle shape as
// pkg/app/detect and pkg/app/findkey.
package dump

import "github.com/deploymenttheory/ps3disc/internal/types"

// Request carries dump's inputs: the base output directory (the
// per-disc subdirectory name is joined onto it), the output-directory
// naming template that name is rendered from against the identity a
// prior detect_disc call found (DefaultTemplate if empty), and whether
// to run a dry run instead of copying.
type Request struct {
	OutputDir string
	Template  string
	DryRun    bool
}

// Response reports either a dry-run plan or a completed (or
// cancelled/partial) dump's final state.
type Response struct {
	DryRun bool
	Plan   PlanResult
	State  types.DumpState
}

// PlanResult mirrors engine.Plan for the app layer, kept distinct so
// pkg/app/dump's public surface does not leak an engine-package type.
type PlanResult struct {
	FileCount       int
	TotalBytes      int64
	ChosenKeySource types.SourceKind
	OutputDirName   string
}
