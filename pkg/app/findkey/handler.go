package findkey

import (
	"fmt"

	"github.com/deploymenttheory/ps3disc/pkg/app"
	"github.com/deploymenttheory/ps3disc/pkg/engine"
)

// Handle runs find_key against eng: scanning req.CacheDir, matching the
// disc's raw block device on first call, and selecting the key whose
// decryption of the detection probe matches the expected plaintext.
func Handle(ctx *app.Context, eng *engine.Engine, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("findkey: scanning %s", req.CacheDir))
	ctx.Progress("Matching physical device...", 10)

	keyID, err := eng.FindKey(ctx.Context, req.CacheDir)
	if err != nil {
		return nil, app.MapEngineError(err)
	}

	rec, _ := eng.ChosenKeyRecord()
	ctx.Progress("Key selected", 100)
	ctx.Log(fmt.Sprintf("findkey: chose key %s from %s (%s)", keyID, rec.SourcePath, rec.SourceKind))

	return &Response{
		KeyID:       keyID,
		SourceKind:  rec.SourceKind,
		SourcePath:  rec.SourcePath,
		GameVersion: rec.GameVersion,
	}, nil
}
