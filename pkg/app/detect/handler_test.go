package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/pkg/app"
	"github.com/deploymenttheory/ps3disc/pkg/engine"
)

type fakeMounts struct{ paths []string }

func (f fakeMounts) EnumerateMounts() ([]string, error) { return f.paths, nil }

type fakeDrives struct{ paths []string }

func (f fakeDrives) EnumerateDrives() ([]string, error) { return f.paths, nil }

func noOpenRawDevice(string) (interfaces.RawDevice, error) { return nil, assert.AnError }

func TestHandle_RejectsNonexistentInputDir(t *testing.T) {
	eng := engine.New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, err := Handle(app.NewContext(nil), eng, &Request{InputDir: "/no/such/directory"})
	require.Error(t, err)
	var ce *app.CommonError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, app.ErrCodeInvalidInput, ce.Code)
}

func TestHandle_MapsDiscNotFoundWhenNoMountHasTheManifest(t *testing.T) {
	eng := engine.New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, err := Handle(app.NewContext(nil), eng, &Request{})
	require.Error(t, err)
	var ce *app.CommonError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, app.ErrCodeDiscNotFound, ce.Code)
}
