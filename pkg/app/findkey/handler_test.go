package findkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/pkg/app"
	"github.com/deploymenttheory/ps3disc/pkg/engine"
)

type fakeMounts struct{}

func (fakeMounts) EnumerateMounts() ([]string, error) { return nil, nil }

type fakeDrives struct{}

func (fakeDrives) EnumerateDrives() ([]string, error) { return nil, nil }

func noOpenRawDevice(string) (interfaces.RawDevice, error) { return nil, assert.AnError }

func TestHandle_RejectsMissingCacheDir(t *testing.T) {
	eng := engine.New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, err := Handle(app.NewContext(nil), eng, &Request{})
	require.Error(t, err)
	var ce *app.CommonError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, app.ErrCodeInvalidInput, ce.Code)
}

func TestHandle_RejectsBeforeDetectDiscHasRun(t *testing.T) {
	eng := engine.New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, err := Handle(app.NewContext(nil), eng, &Request{CacheDir: t.TempDir()})
	require.Error(t, err)
	var ce *app.CommonError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, app.ErrCodeInvalidInput, ce.Code)
}
