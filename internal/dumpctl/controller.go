// Package dumpctl implements C6, the dump controller: the per-file copy
// loop with hash-mismatch-driven retry, timestamp restoration, and
// broken-file accounting (spec §4.6). It orchestrates C5 (the decryption
// stream) and calls into C7 (the validator) to decide, attempt by
// attempt, whether a file's computed hashes verify against its
// reference.
package dumpctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/deploymenttheory/ps3disc/internal/config"
	"github.com/deploymenttheory/ps3disc/internal/decstream"
	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/internal/sectorcipher"
	"github.com/deploymenttheory/ps3disc/internal/types"
	"github.com/deploymenttheory/ps3disc/internal/validator"
)

// ErrCancelled is returned when the controller observes context
// cancellation; it never produces a Failed validation verdict (spec §7
// "Cancelled").
var ErrCancelled = errors.New("dumpctl: dump cancelled")

// errHashMismatch marks a copyFile attempt that read cleanly but whose
// digests didn't verify against the reference; retry.Do retries on it
// like any other error, unless copyFileWithRetry wraps it
// retry.Unrecoverable first.
var errHashMismatch = errors.New("dumpctl: hash mismatch")

// DefaultMaxAttempts bounds the number of times a single file is copied
// before the controller gives up and marks it corrupted (spec §4.6 step
// 4b: "Attempt up to 2 copies"), used when Controller.MaxAttempts is left
// at zero.
const DefaultMaxAttempts = 2

// ProgressFunc is invoked after every file copy and periodically during
// a copy, mirroring the teacher's app.ProgressCallback.
type ProgressFunc func(types.DumpState)

// Controller copies every file from a RawDevice-backed decryption
// stream to the output tree, restoring timestamps and accumulating
// broken files without aborting the run.
type Controller struct {
	Device      interfaces.RawDevice
	Key         [sectorcipher.KeySize]byte
	Unprotected []types.UnprotectedRegion
	Validator   *validator.Validator
	Logger      *slog.Logger
	Progress    ProgressFunc

	// MaxAttempts overrides DefaultMaxAttempts; zero means use the
	// default. Normally set from config.Config.RetryAttempts.
	MaxAttempts int

	// ChunkSize overrides config.ChunkSize as the copy buffer size; zero
	// means use the default. Normally set from
	// config.Config.ChunkSizeBytes.
	ChunkSize int

	// MountPresence, when non-nil, is the set of disc paths the mount
	// walk actually found (spec §4.6 step 4a). A file the raw ISO-9660
	// reader lists but the mount does not is marked "missing" without
	// ever opening a Decryption Stream for it. A nil map skips the
	// check, treating every file as present (tests that exercise a
	// fake device with no real mount to cross-check against).
	MountPresence map[string]bool
}

// New returns a Controller wired to its collaborators, with MaxAttempts
// and ChunkSize set from cfg. v may be nil only when the caller already
// knows no reference hashes exist (e.g. during a key-selection dry run);
// Dump treats a nil Validator the same as one with no reference hashes
// for any file.
func New(device interfaces.RawDevice, key [sectorcipher.KeySize]byte, unprotected []types.UnprotectedRegion, v *validator.Validator, logger *slog.Logger, progress ProgressFunc, cfg *config.Config) *Controller {
	c := &Controller{Device: device, Key: key, Unprotected: unprotected, Validator: v, Logger: logger, Progress: progress}
	if cfg != nil {
		c.MaxAttempts = cfg.RetryAttempts
		c.ChunkSize = cfg.ChunkSizeBytes
	}
	return c
}

func (c *Controller) maxAttempts() uint {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return uint(c.MaxAttempts)
}

func (c *Controller) chunkSize() int {
	if c.ChunkSize <= 0 {
		return config.ChunkSize
	}
	return c.ChunkSize
}

// Dump copies every file and preserves every directory under outputDir,
// driving algos (in addition to MD5) through the decryption stream per
// file when refHashes has entries for that algorithm, and returns the
// resulting DumpState plus the per-file digests of every file that
// copied without landing in BrokenFiles (verified, or with no reference
// to check against).
func (c *Controller) Dump(ctx context.Context, outputDir string, files []types.FileRecord, dirs []types.DirRecord, refHashes types.ReferenceHashes) (types.DumpState, map[string]map[string]string, error) {
	state := types.DumpState{
		TotalFileCount: len(files),
		StartedAt:      time.Now(),
	}
	for _, f := range files {
		state.TotalBytes += int64(f.Length)
	}
	state.TotalSectors = c.Device.TotalSectors()

	digests := make(map[string]map[string]string, len(files))

	if err := materializeDirs(outputDir, dirs); err != nil {
		return state, nil, fmt.Errorf("dumpctl: creating directory tree: %w", err)
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return state, digests, ErrCancelled
		}

		state.CurrentFileIndex = i

		if c.MountPresence != nil && !c.MountPresence[f.SourcePath] {
			state.BrokenFiles = append(state.BrokenFiles, types.BrokenFile{Path: f.SourcePath, Reason: "missing"})
			state.ValidationStatus.Fail()
			c.log().Warn("dumpctl: file listed by the raw volume is absent from the mount", "path", f.SourcePath)
			state.BytesCopied += int64(f.Length)
			c.report(state)
			continue
		}

		ref := refHashes[f.SourcePath]
		algos := algosFor(ref)

		fileDigests, reason, err := c.copyFileWithRetry(ctx, outputDir, f, algos, ref, &state)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
				return state, digests, ErrCancelled
			}
			state.BrokenFiles = append(state.BrokenFiles, types.BrokenFile{Path: f.SourcePath, Reason: "failed to read"})
			state.ValidationStatus.Fail()
			c.log().Warn("dumpctl: file copy failed", "path", f.SourcePath, "error", err)
		} else if reason != "" {
			state.BrokenFiles = append(state.BrokenFiles, types.BrokenFile{Path: f.SourcePath, Reason: reason})
			state.ValidationStatus.Fail()
			c.log().Warn("dumpctl: file did not verify", "path", f.SourcePath, "reason", reason)
		} else {
			digests[f.SourcePath] = fileDigests
		}

		state.BytesCopied += int64(f.Length)
		c.report(state)
	}

	restoreDirTimes(outputDir, dirs)

	state.CurrentFileIndex = len(files)
	c.report(state)
	return state, digests, nil
}

// algosFor returns the non-MD5 algorithm names present in a file's
// reference record, so the stream only pays for hashes the validator can
// actually use.
func algosFor(ref map[string]string) []string {
	var algos []string
	for algo := range ref {
		if algo != types.AlgoMD5 {
			algos = append(algos, algo)
		}
	}
	return algos
}

// copyFileWithRetry implements spec §4.6 step 4b: up to MaxAttempts
// copies via retry.Do. After each attempt it asks the validator for a
// verdict; on a reference mismatch it retries once more unless the
// stream flagged last_block_corrupted or the new hash is identical to
// the previous attempt's (a stable wrong answer retrying won't fix, so
// that attempt is wrapped retry.Unrecoverable to stop immediately).
func (c *Controller) copyFileWithRetry(ctx context.Context, outputDir string, f types.FileRecord, algos []string, ref map[string]string, state *types.DumpState) (map[string]string, string, error) {
	var (
		digests  map[string]string
		previous map[string]string
		mismatch bool
	)

	err := retry.Do(
		func() error {
			d, corrupted, err := c.copyFile(ctx, outputDir, f, algos, state)
			if err != nil {
				mismatch = false
				return err
			}
			digests = d

			if c.verify(state, d, ref) {
				mismatch = false
				return nil
			}

			mismatch = true
			if corrupted || equalDigests(d, previous) {
				return retry.Unrecoverable(errHashMismatch)
			}
			previous = d
			return errHashMismatch
		},
		retry.Attempts(c.maxAttempts()),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.Delay(0),
		retry.OnRetry(func(n uint, err error) {
			if errors.Is(err, errHashMismatch) {
				c.log().Warn("dumpctl: hash mismatch, retrying", "path", f.SourcePath, "attempt", n+1)
			} else {
				c.log().Warn("dumpctl: retrying file copy after read error", "path", f.SourcePath, "attempt", n+1, "error", err)
			}
		}),
	)

	if err != nil && !errors.Is(err, errHashMismatch) {
		return nil, "", err
	}
	if mismatch {
		return digests, "corrupted", nil
	}
	return digests, "", nil
}

// verify delegates to the validator (C7) for the per-file match rule,
// tolerating a nil Validator by treating every file as reference-less.
func (c *Controller) verify(state *types.DumpState, digests map[string]string, ref map[string]string) bool {
	if c.Validator == nil {
		state.ValidationStatus.Downgrade()
		return true
	}
	return c.Validator.VerifyFile(state, digests, ref)
}

func equalDigests(a, b map[string]string) bool {
	if a == nil || b == nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for algo, digest := range a {
		if b[algo] != digest {
			return false
		}
	}
	return true
}

func (c *Controller) copyFile(ctx context.Context, outputDir string, f types.FileRecord, algos []string, state *types.DumpState) (map[string]string, bool, error) {
	targetPath := filepath.Join(outputDir, discPathToHost(f.SourcePath))
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return nil, false, err
	}

	out, err := os.Create(targetPath)
	if err != nil {
		return nil, false, err
	}
	defer out.Close()

	if f.IsEmptyFile() {
		if err := os.Chtimes(targetPath, f.MTimeUTC, f.MTimeUTC); err != nil {
			c.log().Warn("dumpctl: failed to restore mtime", "path", targetPath, "error", err)
		}
		return map[string]string{types.AlgoMD5: emptyMD5Hex}, false, nil
	}

	stream := decstream.New(c.Device, c.Key, c.Unprotected, f.StartSector, f.Length, algos...)

	copyErr := copySectorsWithProgress(ctx, out, stream, state, c.report, c.chunkSize())
	corrupted := stream.LastBlockCorrupted()
	if copyErr != nil {
		return nil, corrupted, copyErr
	}

	if err := os.Chtimes(targetPath, f.MTimeUTC, f.MTimeUTC); err != nil {
		c.log().Warn("dumpctl: failed to restore mtime", "path", targetPath, "error", err)
	}

	return stream.Digests(), corrupted, nil
}

// copySectorsWithProgress mirrors io.Copy but updates state.CurrentSector
// from the stream's monotone sector position as it goes.
func copySectorsWithProgress(ctx context.Context, dst io.Writer, stream *decstream.Stream, state *types.DumpState, report func(types.DumpState), chunkSize int) error {
	buf := make([]byte, chunkSize) // cancellation is checked at least once per chunk
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		state.CurrentSector = stream.SectorPosition()
		if report != nil {
			report(*state)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// materializeDirs creates every directory before any file is copied.
func materializeDirs(outputDir string, dirs []types.DirRecord) error {
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(outputDir, discPathToHost(d.TargetPath)), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// restoreDirTimes restores directory timestamps once every file has been
// written, in reverse-lexical order so a parent's mtime update isn't
// clobbered by writes into it (spec §4.6 step 5).
func restoreDirTimes(outputDir string, dirs []types.DirRecord) {
	ordered := make([]types.DirRecord, len(dirs))
	copy(ordered, dirs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TargetPath > ordered[j].TargetPath })

	for _, d := range ordered {
		path := filepath.Join(outputDir, discPathToHost(d.TargetPath))
		// Best-effort: a read-only parent or platform quirk shouldn't
		// abort the whole dump over a directory timestamp.
		_ = os.Chtimes(path, d.MTimeUTC, d.MTimeUTC)
	}
}

func discPathToHost(discPath string) string {
	if discPath == "" || discPath == "/" {
		return "."
	}
	return strings.ReplaceAll(discPath, `\`, string(filepath.Separator))
}

func (c *Controller) report(state types.DumpState) {
	if c.Progress != nil {
		c.Progress(state.Clone())
	}
}

func (c *Controller) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

const emptyMD5Hex = "d41d8cd98f00b204e9800998ecf8427e"
