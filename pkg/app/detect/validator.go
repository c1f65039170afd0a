package detect

import (
	"os"

	"github.com/deploymenttheory/ps3disc/pkg/app"
)

// Validate checks the request before it reaches the engine. InputDir is
// optional (empty means "search mounted drives"), but if given it must
// exist.
func (r *Request) Validate() error {
	if r.InputDir == "" {
		return nil
	}
	info, err := os.Stat(r.InputDir)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "input directory does not exist", err)
	}
	if !info.IsDir() {
		return app.NewError(app.ErrCodeInvalidInput, "input directory is not a directory", nil)
	}
	return nil
}
