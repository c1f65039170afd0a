// Package discid implements C3, the disc identifier: locating the
// mounted disc, parsing its manifests, walking its file tree, and
// matching it to a raw block device (spec §4.3).
package discid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/internal/iso9660"
	"github.com/deploymenttheory/ps3disc/internal/manifest"
	"github.com/deploymenttheory/ps3disc/internal/types"
)

// ErrDiscNotFound means no mounted volume carries a PS3_DISC.SFB (spec
// §7 DiscNotFound).
var ErrDiscNotFound = errors.New("discid: no mounted PS3 disc found")

// ErrInvalidDisc means PS3_DISC.SFB was found but PARAM.SFO is missing
// or unparseable (spec §7 InvalidDisc).
var ErrInvalidDisc = errors.New("discid: disc manifest is present but PARAM.SFO is missing or invalid")

// ErrNoPhysicalDeviceMatch means no raw device's PS3_DISC.SFB matched
// the mounted disc's bytes (spec §7 NoPhysicalDeviceMatch).
var ErrNoPhysicalDeviceMatch = errors.New("discid: no raw device matches the mounted disc")

const (
	sfbRelPath = "PS3_DISC.SFB"
	sfoRelPath = "PS3_GAME/PARAM.SFO"
)

// Result is everything C3 produces: the identity, the mounted file
// tree, the mount path used, and the matched raw device path.
type Result struct {
	Identity       types.DiscIdentity
	Files          []types.FileRecord
	Dirs           []types.DirRecord
	MountPath      string
	PhysicalDevice string
	SFBBytes       []byte
	Warnings       []error
}

// Identifier runs the disc-identification algorithm against a set of
// platform collaborators.
type Identifier struct {
	Mounts        interfaces.MountEnumerator
	Drives        interfaces.DriveEnumerator
	OpenRawDevice interfaces.RawDeviceOpener
	Logger        *slog.Logger
}

// New returns an Identifier wired to the given collaborators.
func New(mounts interfaces.MountEnumerator, drives interfaces.DriveEnumerator, openRawDevice interfaces.RawDeviceOpener, logger *slog.Logger) *Identifier {
	return &Identifier{Mounts: mounts, Drives: drives, OpenRawDevice: openRawDevice, Logger: logger}
}

// Identify runs spec §4.3 steps 1 through 4. If inputDir is non-empty it
// is used directly as the mount path (step 1's override); otherwise
// every enumerated mount is probed for PS3_DISC.SFB and the first match
// wins.
func (id *Identifier) Identify(ctx context.Context, inputDir string) (Result, error) {
	var warnings []error

	mountPath, err := id.resolveMountPath(inputDir)
	if err != nil {
		return Result{}, err
	}

	sfbData, err := os.ReadFile(filepath.Join(mountPath, sfbRelPath))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDiscNotFound, err)
	}
	sfb, err := manifest.ParseSFB(sfbData)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDiscNotFound, err)
	}
	if !sfb.IsGameDisc() {
		warnings = append(warnings, fmt.Errorf("discid: HYBRID_FLAG %q does not mark a game disc", sfb.HybridFlag))
	}
	titleID := types.NormalizeTitleID(sfb.TitleID)

	sfoData, err := os.ReadFile(filepath.Join(mountPath, sfoRelPath))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidDisc, err)
	}
	sfo, err := manifest.ParseSFO(sfoData)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidDisc, err)
	}
	if sfo.TitleID != "" && sfo.TitleID != sfb.TitleID {
		warnings = append(warnings, fmt.Errorf("discid: PARAM.SFO TITLE_ID %q does not match PS3_DISC.SFB TITLE_ID %q", sfo.TitleID, sfb.TitleID))
	}

	identity := types.NewDiscIdentity(sfo.Title, titleID, sfo.Version, sfo.AppVersion)

	files, dirs, err := walkMount(mountPath)
	if err != nil {
		return Result{}, fmt.Errorf("discid: walking mounted disc: %w", err)
	}

	for _, w := range warnings {
		id.log().Warn("discid: warning", "error", w)
	}

	return Result{
		Identity:  identity,
		Files:     files,
		Dirs:      dirs,
		MountPath: mountPath,
		SFBBytes:  sfbData,
		Warnings:  warnings,
	}, nil
}

// MatchPhysicalDevice runs spec §4.3 step 5 against the bytes captured
// by Identify. It is a distinct method, not part of Identify itself,
// because a mismatch (ErrNoPhysicalDeviceMatch) is fatal to find_key
// rather than to detect_disc (spec §7).
func (id *Identifier) MatchPhysicalDevice(ctx context.Context, mountedSFB []byte) (string, []error, error) {
	return id.matchPhysicalDevice(ctx, mountedSFB)
}

func (id *Identifier) resolveMountPath(inputDir string) (string, error) {
	if inputDir != "" {
		if _, err := os.Stat(filepath.Join(inputDir, sfbRelPath)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDiscNotFound, err)
		}
		return inputDir, nil
	}

	if id.Mounts == nil {
		return "", ErrDiscNotFound
	}
	mounts, err := id.Mounts.EnumerateMounts()
	if err != nil {
		return "", fmt.Errorf("discid: enumerating mounts: %w", err)
	}
	for _, m := range mounts {
		if _, err := os.Stat(filepath.Join(m, sfbRelPath)); err == nil {
			return m, nil
		}
	}
	return "", ErrDiscNotFound
}

// matchPhysicalDevice implements spec §4.3 step 5: it opens each
// candidate raw device, reads PS3_DISC.SFB through a fresh ISO-9660
// reader, and compares the bytes against the mounted copy.
func (id *Identifier) matchPhysicalDevice(ctx context.Context, mountedSFB []byte) (string, []error, error) {
	if id.Drives == nil || id.OpenRawDevice == nil {
		return "", nil, ErrNoPhysicalDeviceMatch
	}
	paths, err := id.Drives.EnumerateDrives()
	if err != nil {
		return "", nil, fmt.Errorf("discid: enumerating drives: %w", err)
	}

	var warnings []error
	for _, path := range paths {
		if ctx.Err() != nil {
			return "", warnings, ctx.Err()
		}
		matched, warn := tryMatchDevice(id.OpenRawDevice, path, mountedSFB)
		if warn != nil {
			warnings = append(warnings, warn)
			continue
		}
		if matched {
			return path, warnings, nil
		}
	}
	return "", warnings, ErrNoPhysicalDeviceMatch
}

func tryMatchDevice(open interfaces.RawDeviceOpener, path string, mountedSFB []byte) (bool, error) {
	dev, err := open(path)
	if err != nil {
		return false, fmt.Errorf("discid: opening %s: %w", path, err)
	}
	defer dev.Close()

	reader, err := iso9660.Open(dev)
	if err != nil {
		return false, fmt.Errorf("discid: %s is not a readable ISO-9660 volume: %w", path, err)
	}

	data, err := reader.ReadFile(sfbRelPath)
	if err != nil {
		return false, fmt.Errorf("discid: %s has no %s: %w", path, sfbRelPath, err)
	}
	return bytes.Equal(data, mountedSFB), nil
}

// walkMount builds the file/directory tree from a real mounted
// filesystem. Go's stdlib has no portable creation-time accessor, so
// CTimeUTC is populated from the same modification time as MTimeUTC;
// the dump controller only ever restores mtime (spec §4.6).
func walkMount(root string) ([]types.FileRecord, []types.DirRecord, error) {
	var files []types.FileRecord
	var dirs []types.DirRecord

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}
		discPath := strings.ReplaceAll(rel, "/", `\`)

		if info.IsDir() {
			target := discPath
			if target == "" {
				target = "/"
			}
			dirs = append(dirs, types.DirRecord{
				TargetPath: target,
				CTimeUTC:   info.ModTime().UTC(),
				MTimeUTC:   info.ModTime().UTC(),
			})
			return nil
		}

		parent := filepath.ToSlash(filepath.Dir(rel))
		if parent == "." {
			parent = "/"
		} else {
			parent = strings.ReplaceAll(parent, "/", `\`)
		}

		files = append(files, types.FileRecord{
			SourcePath: discPath,
			Length:     uint64(info.Size()),
			CTimeUTC:   info.ModTime().UTC(),
			MTimeUTC:   info.ModTime().UTC(),
			ParentDir:  parent,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].SourcePath < files[j].SourcePath })
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].TargetPath < dirs[j].TargetPath })
	return files, dirs, nil
}

func (id *Identifier) log() *slog.Logger {
	if id.Logger != nil {
		return id.Logger
	}
	return slog.Default()
}
