package dump

import (
	"fmt"
	"path/filepath"

	"github.com/deploymenttheory/ps3disc/internal/types"
	"github.com/deploymenttheory/ps3disc/pkg/app"
	"github.com/deploymenttheory/ps3disc/pkg/engine"
)

// Handle runs dump against eng: --dry-run reports the plan without
// copying; otherwise it joins req.OutputDir with the rendered
// per-disc directory name and runs the full copy loop.
func Handle(ctx *app.Context, eng *engine.Engine, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := eng.PlanDump(req.Template)
	if err != nil {
		return nil, app.MapEngineError(err)
	}

	if req.DryRun {
		ctx.Log(fmt.Sprintf("dump: dry run - %d files, %d bytes, key source %s, output %q", plan.FileCount, plan.TotalBytes, plan.ChosenKeySource, plan.OutputDirName))
		return &Response{DryRun: true, Plan: PlanResult{
			FileCount:       plan.FileCount,
			TotalBytes:      plan.TotalBytes,
			ChosenKeySource: plan.ChosenKeySource,
			OutputDirName:   plan.OutputDirName,
		}}, nil
	}

	outputDir := filepath.Join(req.OutputDir, plan.OutputDirName)
	ctx.Log(fmt.Sprintf("dump: writing to %s", outputDir))

	eng.SetProgress(func(s types.DumpState) {
		ctx.Progress(fmt.Sprintf("%d/%d files", s.CurrentFileIndex, s.TotalFileCount), s.Percent())
	})

	state, err := eng.Dump(ctx.Context, outputDir)
	if err != nil {
		return nil, app.MapEngineError(err)
	}

	ctx.Log(fmt.Sprintf("dump: complete - validation_status=%s broken_files=%d", state.ValidationStatus, len(state.BrokenFiles)))
	return &Response{State: state}, nil
}
