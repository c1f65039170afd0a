// Package keyselect implements C4, the key selector: choosing the unique
// key whose decryption of the DetectionProbe sector yields the expected
// plaintext prefix (spec §4.4).
package keyselect

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/deploymenttheory/ps3disc/internal/keyindex"
	"github.com/deploymenttheory/ps3disc/internal/sectorcipher"
	"github.com/deploymenttheory/ps3disc/internal/types"
)

// ErrNoKey is returned when every known key has already been tested
// against this probe (spec §7 NoKey).
var ErrNoKey = errors.New("keyselect: no untested keys remain")

// ErrNoMatch is returned when every untested key failed the probe (spec §7
// NoMatch).
var ErrNoMatch = errors.New("keyselect: no candidate key decrypts the probe")

// Selector runs the key-selection algorithm against a shared KeyIndex. The
// tested set is owned by the Selector (one per engine instance), not the
// index, so re-running Select with a fresh Selector over an unchanged
// index reproduces the same result (spec §8 round-trip property).
type Selector struct {
	Logger *slog.Logger

	mu     sync.Mutex
	tested map[string]bool
}

// New returns a Selector with an empty tested set.
func New(logger *slog.Logger) *Selector {
	return &Selector{Logger: logger, tested: make(map[string]bool)}
}

// probeResult is the outcome of testing one candidate key.
type probeResult struct {
	keyID   string
	matched bool
}

// Select tests every untested key in idx against probe, using
// probeCiphertext (the single encrypted sector read from the raw device at
// probe.SectorNumber). On success it returns the chosen decrypted_key_id
// and the KeyRecord whose metadata should drive reference-hash lookup,
// chosen per the tie-break rule in spec §4.4 step 5.
func (s *Selector) Select(ctx context.Context, idx *keyindex.Index, probe types.DetectionProbe, probeCiphertext []byte, productCode string) (string, types.KeyRecord, error) {
	s.mu.Lock()
	var untested []string
	for _, id := range idx.KeyIDs() {
		if !s.tested[id] {
			untested = append(untested, id)
		}
	}
	s.mu.Unlock()

	if len(untested) == 0 {
		return "", types.KeyRecord{}, ErrNoKey
	}

	results := make([]probeResult, len(untested))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range untested {
		i, id := i, id
		group := idx.Records(id)
		if len(group) == 0 {
			continue
		}
		key := group[0].DecryptedKey
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			matched, err := sectorcipher.MatchesPrefix(key, probeCiphertext, probe.SectorIV, probe.ExpectedPrefix)
			if err != nil {
				return err
			}
			results[i] = probeResult{keyID: id, matched: matched}
			return nil
		})
	}
	// Parallelism here is advisory (spec §4.4/§9): a cancellation error
	// from one worker is surfaced, but every key is still marked tested
	// below regardless of outcome.
	groupErr := g.Wait()

	s.mu.Lock()
	for _, id := range untested {
		s.tested[id] = true
	}
	s.mu.Unlock()

	if groupErr != nil {
		return "", types.KeyRecord{}, groupErr
	}

	var matches []string
	for _, r := range results {
		if r.matched {
			matches = append(matches, r.keyID)
		}
	}

	if len(matches) == 0 {
		return "", types.KeyRecord{}, ErrNoMatch
	}
	if len(matches) > 1 {
		s.log().Warn("keyselect: multiple distinct keys matched the detection probe; choosing first in enumeration order", "candidates", matches)
	}

	chosenID := firstInOrder(idx.KeyIDs(), matches)
	chosenRecord := pickRecord(idx.Records(chosenID), productCode)
	return chosenID, chosenRecord, nil
}

// firstInOrder returns the element of candidates that appears earliest in
// order, implementing the deterministic tie-break of spec §4.4 step 4.
func firstInOrder(order []string, candidates []string) string {
	want := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		want[c] = true
	}
	for _, id := range order {
		if want[id] {
			return id
		}
	}
	return candidates[0]
}

// pickRecord implements spec §4.4 step 5: among KeyRecords sharing the
// chosen id, prefer (i) an IRD file whose name contains productCode
// case-insensitively, else (ii) any IRD file, else (iii) the first record.
func pickRecord(group []types.KeyRecord, productCode string) types.KeyRecord {
	lowerCode := strings.ToLower(productCode)

	for _, rec := range group {
		if rec.SourceKind == types.SourceIRD && strings.Contains(strings.ToLower(rec.SourcePath), lowerCode) {
			return rec
		}
	}
	for _, rec := range group {
		if rec.SourceKind == types.SourceIRD {
			return rec
		}
	}
	return group[0]
}

func (s *Selector) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
