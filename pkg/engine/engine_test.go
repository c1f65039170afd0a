package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/ps3disc/internal/interfaces"
)

type fakeMounts struct{}

func (fakeMounts) EnumerateMounts() ([]string, error) { return nil, nil }

type fakeDrives struct{}

func (fakeDrives) EnumerateDrives() ([]string, error) { return nil, nil }

func noOpenRawDevice(string) (interfaces.RawDevice, error) { return nil, assert.AnError }

func TestFindKey_RejectsBeforeDetectDiscHasRun(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, err := e.FindKey(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNotDetected)
}

func TestPlanDump_RejectsBeforeDetectDiscHasRun(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, err := e.PlanDump("")
	require.ErrorIs(t, err, ErrNotDetected)
}

func TestPlanDump_RejectsBeforeKeyIsChosen(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	e.mu.Lock()
	e.mountPath = "/mnt/fake"
	e.mu.Unlock()

	_, err := e.PlanDump("")
	require.ErrorIs(t, err, ErrNoKeyChosen)
}

func TestDump_RejectsBeforeKeyIsChosen(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, err := e.Dump(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNoKeyChosen)
}

func TestChosenKeyRecord_FalseBeforeFindKeyHasRun(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	_, ok := e.ChosenKeyRecord()
	assert.False(t, ok)
}

func TestProgress_ZeroBeforeAnyDump(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	state := e.Progress()
	assert.Equal(t, 0, state.TotalFileCount)
}

func TestCancel_NoopWithoutRunningDump(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	e.Cancel()
}

func TestClose_NoopWithoutOpenDevice(t *testing.T) {
	e := New(fakeMounts{}, fakeDrives{}, noOpenRawDevice, nil)
	require.NoError(t, e.Close())
}
