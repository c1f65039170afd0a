// Package validator implements C7: deciding whether a completed dump's
// computed hashes match the reference hashes carried by the chosen key's
// IRD records, and folding that verdict into the run's ValidationStatus
// (spec §4.7).
package validator

import (
	"log/slog"
	"sort"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// Validator applies the match rule to a completed dump's per-file digests.
// It holds no state between runs; a fresh Validator per dump is equally
// correct as a shared one.
type Validator struct {
	Logger *slog.Logger
}

// New returns a Validator.
func New(logger *slog.Logger) *Validator {
	return &Validator{Logger: logger}
}

// ReferenceHashesForGroup merges ReferenceHashes from every KeyRecord in
// group whose GameVersion equals discVersion, implementing spec §4.7:
// "Reference hashes are collected from all matching IRD KeyRecords whose
// game_version equals DiscIdentity.disc_version; records with other
// versions are ignored." A record with no GameVersion set (Redump-style
// flat key dumps, which carry no per-file hashes at all) is treated as
// version-agnostic rather than excluded, since it has nothing to
// contribute either way.
func ReferenceHashesForGroup(group []types.KeyRecord, discVersion string) types.ReferenceHashes {
	merged := make(types.ReferenceHashes)
	for _, rec := range group {
		if rec.GameVersion != "" && rec.GameVersion != discVersion {
			continue
		}
		for path, algos := range rec.ReferenceHashes {
			dst, ok := merged[path]
			if !ok {
				dst = make(map[string]string, len(algos))
				merged[path] = dst
			}
			for algo, digest := range algos {
				dst[algo] = digest
			}
		}
	}
	return merged
}

// VerifyFile adjudicates one file's final computed digests against its
// reference record (possibly empty) and folds the outcome into state:
//
//   - no reference hash at all for the file: validation_status downgrades
//     Ok -> Unknown, and the file counts as verified (there is nothing to
//     contradict).
//   - at least one reference algorithm with a matching digest: verified,
//     no state change.
//   - reference hashes exist but none match: not verified; state is left
//     untouched here — the dump controller (C6) owns the retry decision
//     and only marks broken_files/Failed once it gives up.
func (v *Validator) VerifyFile(state *types.DumpState, digests map[string]string, ref map[string]string) bool {
	if len(ref) == 0 {
		state.ValidationStatus.Downgrade()
		return true
	}
	return MatchesAny(digests, ref)
}

// Verify adjudicates every file in digests against refHashes in one pass,
// for callers (tests, a standalone revalidation path) that have the full
// per-file digest map up front rather than driving the copy loop
// themselves. It applies the same rule as VerifyFile, plus appending
// broken_files/Failed for files whose reference didn't match at all —
// appropriate here because, unlike C6's retry loop, there is no further
// attempt left to make.
func (v *Validator) Verify(state *types.DumpState, digests map[string]map[string]string, refHashes types.ReferenceHashes) {
	paths := make([]string, 0, len(digests))
	for path := range digests {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		ref := refHashes[path]
		if v.VerifyFile(state, digests[path], ref) {
			continue
		}
		state.BrokenFiles = append(state.BrokenFiles, types.BrokenFile{Path: path, Reason: "corrupted"})
		state.ValidationStatus.Fail()
		v.log().Warn("validator: no reference algorithm matched", "path", path)
	}
}

// MatchesAny implements the match rule (spec §4.7): a single (algorithm,
// digest) pair shared between what the stream computed and what the
// reference carries is sufficient, regardless of how many other
// algorithms disagree or are simply absent on one side.
func MatchesAny(computed, ref map[string]string) bool {
	for algo, digest := range computed {
		if refDigest, ok := ref[algo]; ok && refDigest == digest {
			return true
		}
	}
	return false
}

func (v *Validator) log() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}
