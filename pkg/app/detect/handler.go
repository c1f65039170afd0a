package detect

import (
	"fmt"

	"github.com/deploymenttheory/ps3disc/pkg/app"
	"github.com/deploymenttheory/ps3disc/pkg/engine"
)

// Handle runs detect_disc against eng and reports the resulting
// identity and output-directory name.
func Handle(ctx *app.Context, eng *engine.Engine, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.InputDir != "" {
		ctx.Log(fmt.Sprintf("detect: using explicit input directory %s", req.InputDir))
	} else {
		ctx.Log("detect: searching mounted drives for a PS3 disc")
	}
	ctx.Progress("Identifying disc...", 10)

	identity, outputDirName, err := eng.DetectDisc(ctx.Context, req.InputDir, req.Template)
	if err != nil {
		return nil, app.MapEngineError(err)
	}

	ctx.Progress("Disc identified", 100)
	ctx.Log(fmt.Sprintf("detect: %s (%s) -> %s", identity.Title, identity.ProductCode, outputDirName))

	return &Response{Identity: identity, OutputDirName: outputDirName}, nil
}
