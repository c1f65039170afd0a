package app

import (
	"context"
	"errors"

	"github.com/deploymenttheory/ps3disc/internal/discid"
	"github.com/deploymenttheory/ps3disc/internal/dumpctl"
	"github.com/deploymenttheory/ps3disc/internal/keyselect"
	"github.com/deploymenttheory/ps3disc/pkg/engine"
)

// MapEngineError translates a sentinel error surfaced by pkg/engine into
// a CommonError carrying one of the taxonomy codes in this file, so
// callers at the host boundary (cmd/, a future GUI) branch on Code
// rather than importing every internal package's error variables
// themselves.
func MapEngineError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, dumpctl.ErrCancelled), errors.Is(err, context.Canceled):
		return NewError(ErrCodeCancelled, "operation was cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrCodeTimeout, "operation timed out", err)
	case errors.Is(err, discid.ErrDiscNotFound):
		return NewError(ErrCodeDiscNotFound, "no PS3 disc found", err)
	case errors.Is(err, discid.ErrInvalidDisc):
		return NewError(ErrCodeInvalidDisc, "disc manifest is present but invalid", err)
	case errors.Is(err, discid.ErrNoPhysicalDeviceMatch):
		return NewError(ErrCodeNoPhysicalDeviceMatch, "no raw device matches the mounted disc", err)
	case errors.Is(err, keyselect.ErrNoKey):
		return NewError(ErrCodeNoKey, "no untested keys remain in the cache", err)
	case errors.Is(err, keyselect.ErrNoMatch):
		return NewError(ErrCodeNoMatch, "no candidate key decrypts the detection probe", err)
	case errors.Is(err, engine.ErrDetectionFileMissing):
		return NewError(ErrCodeDetectionFileMissing, "no detection-probe candidate file found on disc", err)
	case errors.Is(err, engine.ErrNotDetected):
		return NewError(ErrCodeInvalidInput, "detect_disc has not run yet", err)
	case errors.Is(err, engine.ErrNoKeyChosen):
		return NewError(ErrCodeInvalidInput, "find_key has not run yet", err)
	default:
		return NewError(ErrCodeIOError, "unexpected I/O error", err)
	}
}
