// Package engine wires C1 through C8 into the three host-boundary
// operations spec §6 describes: detect_disc, find_key, and dump. An
// Engine is constructed explicitly by its caller (the CLI's root
// command, or a future GUI) and passed around rather than resolved
// through a package-level singleton — the KeyIndex has no implicit
// singleton by design (spec §9), and this repo extends that same
// discipline to the engine that owns it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/deploymenttheory/ps3disc/internal/config"
	"github.com/deploymenttheory/ps3disc/internal/discid"
	"github.com/deploymenttheory/ps3disc/internal/diskspace"
	"github.com/deploymenttheory/ps3disc/internal/dumpctl"
	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/internal/iso9660"
	"github.com/deploymenttheory/ps3disc/internal/keyindex"
	"github.com/deploymenttheory/ps3disc/internal/keyproviders"
	"github.com/deploymenttheory/ps3disc/internal/keyselect"
	"github.com/deploymenttheory/ps3disc/internal/rawdevice"
	"github.com/deploymenttheory/ps3disc/internal/sectorcipher"
	"github.com/deploymenttheory/ps3disc/internal/types"
	"github.com/deploymenttheory/ps3disc/internal/validator"
)

// ErrNotDetected is returned by FindKey and Dump when detect_disc has
// not yet run successfully against this Engine.
var ErrNotDetected = errors.New("engine: detect_disc has not run yet")

// ErrNoKeyChosen is returned by Dump when find_key has not yet chosen
// a key for this Engine.
var ErrNoKeyChosen = errors.New("engine: find_key has not run yet")

// ErrDetectionFileMissing means none of the fixed-priority probe
// candidates (spec §3) exist on the disc at all, so no DetectionProbe
// can be built (spec §7 DetectionFileMissing).
var ErrDetectionFileMissing = errors.New("engine: no detection-probe candidate file found on disc")

// Plan is the report produced by PlanDump (the --dry-run surface): the
// would-be outcome of a dump without copying anything.
type Plan struct {
	FileCount       int
	TotalBytes      int64
	ChosenKeySource types.SourceKind
	OutputDirName   string
}

// Engine holds everything identification and key selection discover,
// scoped to one disc session. It is safe for concurrent use: Progress
// and Cancel may be called from another goroutine while Dump runs.
type Engine struct {
	Logger        *slog.Logger
	Mounts        interfaces.MountEnumerator
	Drives        interfaces.DriveEnumerator
	OpenRawDevice interfaces.RawDeviceOpener
	Config        *config.Config

	identifier *discid.Identifier
	index      *keyindex.Index
	selector   *keyselect.Selector
	validator  *validator.Validator

	mu           sync.Mutex
	identity     types.DiscIdentity
	mountPath    string
	mountFiles   []types.FileRecord
	mountDirs    []types.DirRecord
	sfbBytes     []byte
	device       interfaces.RawDevice
	rawReader    *iso9660.Reader
	files        []types.FileRecord
	dirs         []types.DirRecord
	unprotected  []types.UnprotectedRegion
	chosenKeyID  string
	chosenKey    [sectorcipher.KeySize]byte
	chosenRecord types.KeyRecord
	chosenGroup  []types.KeyRecord
	refHashes    types.ReferenceHashes

	state    types.DumpState
	cancel   context.CancelFunc
	onUpdate func(types.DumpState)
}

// New returns an Engine wired to its platform collaborators. A nil
// logger falls back to slog.Default() throughout.
func New(mounts interfaces.MountEnumerator, drives interfaces.DriveEnumerator, openRawDevice interfaces.RawDeviceOpener, logger *slog.Logger) *Engine {
	return &Engine{
		Logger:        logger,
		Mounts:        mounts,
		Drives:        drives,
		OpenRawDevice: openRawDevice,
		identifier:    discid.New(mounts, drives, openRawDevice, logger),
		index:         keyindex.New(),
		selector:      keyselect.New(logger),
		validator:     validator.New(logger),
	}
}

// SetProgress installs a callback invoked from Dump's goroutine every
// time the dump controller reports progress, mirroring the teacher's
// app.Context.ProgressCallback.
func (e *Engine) SetProgress(fn func(types.DumpState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

// Progress returns a point-in-time snapshot of the current (or most
// recently completed) dump's state, safe to call concurrently with
// Dump (spec §6's progress observables, made pollable per SPEC_FULL).
func (e *Engine) Progress() types.DumpState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Cancel requests cancellation of an in-flight Dump. It is a no-op if
// no dump is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ChosenKeyRecord returns the KeyRecord find_key chose to drive
// reference-hash lookup, and whether a key has been chosen at all.
func (e *Engine) ChosenKeyRecord() (types.KeyRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chosenKeyID == "" {
		return types.KeyRecord{}, false
	}
	return e.chosenRecord, true
}

// DetectDisc runs spec §4.3 steps 1-4 (identification up to, but not
// including, the raw physical-device match, which find_key performs)
// and renders the output-directory name from template (DefaultTemplate
// if empty).
func (e *Engine) DetectDisc(ctx context.Context, inputDir, template string) (types.DiscIdentity, string, error) {
	result, err := e.identifier.Identify(ctx, inputDir)
	if err != nil {
		return types.DiscIdentity{}, "", err
	}

	e.mu.Lock()
	e.identity = result.Identity
	e.mountPath = result.MountPath
	e.mountFiles = result.Files
	e.mountDirs = result.Dirs
	e.sfbBytes = result.SFBBytes
	e.mu.Unlock()

	if template == "" {
		template = discid.DefaultTemplate
	}
	return result.Identity, discid.RenderOutputDir(template, result.Identity), nil
}

// FindKey runs spec §4.3 step 5 (on first call only; a previously
// matched raw device is reused), spec §4.1's provider enumeration, and
// spec §4.4's key-selection algorithm. Calling it again after adding
// files to cacheDir re-scans the cache directory and only probes keys
// the Selector has not already tested, without reopening the device
// (the "key cache rescan" re-entry point).
func (e *Engine) FindKey(ctx context.Context, cacheDir string) (string, error) {
	e.mu.Lock()
	identity := e.identity
	mountPath := e.mountPath
	sfbBytes := e.sfbBytes
	device := e.device
	files := e.files
	dirs := e.dirs
	unprotected := e.unprotected
	e.mu.Unlock()

	if mountPath == "" {
		return "", ErrNotDetected
	}

	if device == nil {
		physicalPath, warnings, err := e.identifier.MatchPhysicalDevice(ctx, sfbBytes)
		for _, w := range warnings {
			e.log().Warn("engine: physical device probe warning", "error", w)
		}
		if err != nil {
			return "", err
		}

		device, err = e.OpenRawDevice(physicalPath)
		if err != nil {
			return "", fmt.Errorf("engine: opening raw device %s: %w", physicalPath, err)
		}

		reader, err := iso9660.Open(rawdevice.NewCachingSource(device))
		if err != nil {
			reader, err = iso9660.Open(device)
			if err != nil {
				device.Close()
				return "", fmt.Errorf("engine: %s is not a readable ISO-9660 volume: %w", physicalPath, err)
			}
		}

		files, err = reader.Files()
		if err != nil {
			device.Close()
			return "", fmt.Errorf("engine: reading file list: %w", err)
		}
		dirs, err = reader.Dirs()
		if err != nil {
			device.Close()
			return "", fmt.Errorf("engine: reading directory list: %w", err)
		}
		unprotected, err = device.UnprotectedRegions()
		if err != nil {
			e.log().Warn("engine: reading unprotected-region map failed, assuming fully protected", "error", err)
			unprotected = nil
		}

		e.mu.Lock()
		e.device = device
		e.rawReader = reader
		e.files = files
		e.dirs = dirs
		e.unprotected = unprotected
		e.mu.Unlock()
	}

	providers := keyproviders.Providers(e.log())
	for _, p := range providers {
		records, warnings, err := p.Enumerate(ctx, cacheDir, identity.ProductCode)
		for _, w := range warnings {
			e.log().Warn("engine: key provider warning", "kind", p.Kind(), "error", w)
		}
		if err != nil {
			return "", fmt.Errorf("engine: %s provider: %w", p.Kind(), err)
		}
		e.index.AddBatch(resolveRecordHashes(files, records))
	}

	probe, probeCiphertext, err := e.buildProbe(device, files)
	if err != nil {
		return "", err
	}

	keyID, chosenRecord, err := e.selector.Select(ctx, e.index, probe, probeCiphertext, identity.ProductCode)
	if err != nil {
		return "", err
	}

	group := e.index.Records(keyID)
	refHashes := validator.ReferenceHashesForGroup(group, identity.DiscVersion)

	e.mu.Lock()
	e.chosenKeyID = keyID
	e.chosenKey = chosenRecord.DecryptedKey
	e.chosenRecord = chosenRecord
	e.chosenGroup = group
	e.refHashes = refHashes
	e.mu.Unlock()

	return keyID, nil
}

// resolveRecordHashes resolves every record's sector-keyed RawFileHashes
// against the authoritative raw file list, populating ReferenceHashes
// (spec §4.7) before the records enter the KeyIndex.
func resolveRecordHashes(files []types.FileRecord, records []types.KeyRecord) []types.KeyRecord {
	for i := range records {
		if len(records[i].RawFileHashes) > 0 {
			records[i].ReferenceHashes = types.ResolveReferenceHashes(files, records[i].RawFileHashes)
		}
	}
	return records
}

// buildProbe implements spec §3: the first present, non-empty probe
// candidate (LIC.DAT, then EBOOT.BIN) supplies the DetectionProbe and
// its single encrypted sector.
func (e *Engine) buildProbe(device interfaces.RawDevice, files []types.FileRecord) (types.DetectionProbe, []byte, error) {
	byPath := make(map[string]types.FileRecord, len(files))
	for _, f := range files {
		byPath[f.SourcePath] = f
	}

	for _, cand := range types.ProbeCandidates {
		// Candidate paths are written rooted (`\PS3_GAME\...`); FileRecord
		// source paths are disc-relative, without the leading separator.
		f, ok := byPath[strings.TrimPrefix(cand.Path, `\`)]
		if !ok || f.IsEmptyFile() {
			continue
		}
		ciphertext, err := device.ReadSectors(f.StartSector, 1)
		if err != nil {
			return types.DetectionProbe{}, nil, fmt.Errorf("engine: reading probe sector for %s: %w", cand.Path, err)
		}
		iv, err := device.SectorIV(f.StartSector)
		if err != nil {
			return types.DetectionProbe{}, nil, fmt.Errorf("engine: probe IV for %s: %w", cand.Path, err)
		}
		return types.DetectionProbe{SectorNumber: f.StartSector, ExpectedPrefix: cand.ExpectedPrefix, SectorIV: iv}, ciphertext, nil
	}
	return types.DetectionProbe{}, nil, ErrDetectionFileMissing
}

// PlanDump reports what Dump would do without copying anything (the
// --dry-run surface): file count, total bytes, the chosen key's
// source, and the rendered output-directory name.
func (e *Engine) PlanDump(template string) (Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mountPath == "" {
		return Plan{}, ErrNotDetected
	}
	if e.chosenKeyID == "" {
		return Plan{}, ErrNoKeyChosen
	}

	var totalBytes int64
	for _, f := range e.files {
		totalBytes += int64(f.Length)
	}

	source := e.chosenRecord.SourceKind

	if template == "" {
		template = discid.DefaultTemplate
	}
	return Plan{
		FileCount:       len(e.files),
		TotalBytes:      totalBytes,
		ChosenKeySource: source,
		OutputDirName:   discid.RenderOutputDir(template, e.identity),
	}, nil
}

// Dump runs spec §4.6 end to end, writing under outputDir (the final,
// already-rendered destination directory; callers combine a base
// directory with the rendered output-directory name before calling Dump).
func (e *Engine) Dump(ctx context.Context, outputDir string) (types.DumpState, error) {
	e.mu.Lock()
	device := e.device
	files := e.files
	dirs := e.dirs
	unprotected := e.unprotected
	key := e.chosenKey
	refHashes := e.refHashes
	mountFiles := e.mountFiles
	e.mu.Unlock()

	if device == nil {
		return types.DumpState{}, ErrNoKeyChosen
	}

	if free, ferr := diskspace.Free(outputDir); ferr != nil {
		e.log().Debug("engine: free-space check skipped", "error", ferr)
	} else {
		var total uint64
		for _, f := range files {
			total += f.Length
		}
		if free < total+diskspace.Reserve {
			e.log().Warn("engine: destination volume reports insufficient free space", "free_bytes", free, "needed_bytes", total+diskspace.Reserve)
		}
	}

	mountPresence := make(map[string]bool, len(mountFiles))
	for _, f := range mountFiles {
		mountPresence[f.SourcePath] = true
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	runID := uuid.New().String()
	e.log().Info("engine: starting dump", "run_id", runID, "files", len(files))

	ctrl := dumpctl.New(device, key, unprotected, e.validator, e.Logger, e.reportProgress, e.Config)
	ctrl.MountPresence = mountPresence

	state, _, err := ctrl.Dump(runCtx, outputDir, files, dirs, refHashes)

	e.mu.Lock()
	e.state = state
	e.mu.Unlock()

	if err != nil {
		e.log().Warn("engine: dump ended early", "run_id", runID, "error", err)
	} else {
		e.log().Info("engine: dump complete", "run_id", runID, "validation_status", state.ValidationStatus.String(), "broken_files", len(state.BrokenFiles))
	}
	return state, err
}

func (e *Engine) reportProgress(s types.DumpState) {
	e.mu.Lock()
	e.state = s
	cb := e.onUpdate
	e.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Close releases the raw device handle, if one is open. Safe to call
// more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	device := e.device
	e.device = nil
	e.mu.Unlock()
	if device == nil {
		return nil
	}
	return device.Close()
}

func (e *Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
