package dump

import "github.com/deploymenttheory/ps3disc/pkg/app"

// Validate checks that an output directory was given; DryRun tolerates
// a directory that doesn't exist yet (Handle never creates it in that
// mode), a real dump relies on the controller's own MkdirAll.
func (r *Request) Validate() error {
	if r.OutputDir == "" {
		return app.NewError(app.ErrCodeInvalidInput, "output directory is required", nil)
	}
	return nil
}
