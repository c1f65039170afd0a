// Package decstream implements C5, the decryption stream: a read-side
// stream over one file's sector range that decrypts the protected
// sectors, passes unprotected ones through untouched, and hashes every
// emitted byte with MD5/SHA1/SHA256 simultaneously (spec §4.5).
package decstream

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"sync/atomic"

	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/internal/sectorcipher"
	"github.com/deploymenttheory/ps3disc/internal/types"
)

// Stream presents a flat io.Reader over a file's declared byte range,
// decrypting protected sectors on the fly. It is not safe for
// concurrent use by multiple goroutines; the dump controller copies one
// file at a time.
type Stream struct {
	device      interfaces.RawDevice
	key         [sectorcipher.KeySize]byte
	unprotected []types.UnprotectedRegion

	startSector uint64
	length      uint64

	remaining  uint64 // bytes not yet emitted
	pending    []byte // leftover decoded bytes from the current sector
	nextSector uint64

	hashes map[string]hash.Hash

	sectorPos          atomic.Uint64
	lastBlockCorrupted bool
}

// New constructs a Stream over a file occupying [startSector,
// startSector+ceil(length/2048)) on device, decrypting with key except
// where unprotected says otherwise. algos selects which hash
// algorithms to compute in addition to MD5, which is always computed
// (spec §4.5: "MD5 and any additional hash algorithms required by the
// reference").
func New(device interfaces.RawDevice, key [sectorcipher.KeySize]byte, unprotected []types.UnprotectedRegion, startSector, length uint64, algos ...string) *Stream {
	s := &Stream{
		device:      device,
		key:         key,
		unprotected: unprotected,
		startSector: startSector,
		length:      length,
		remaining:   length,
		nextSector:  startSector,
		hashes:      map[string]hash.Hash{types.AlgoMD5: md5.New()},
	}
	s.sectorPos.Store(startSector)
	for _, a := range algos {
		switch a {
		case types.AlgoSHA1:
			s.hashes[types.AlgoSHA1] = sha1.New()
		case types.AlgoSHA256:
			s.hashes[types.AlgoSHA256] = sha256.New()
		}
	}
	return s
}

// SectorPosition returns the monotone current sector number for
// progress reporting (spec §4.5 "Position exposure").
func (s *Stream) SectorPosition() uint64 {
	return s.sectorPos.Load()
}

// LastBlockCorrupted reports whether the most recent sector read or
// decrypt failed. The same failure is also returned as an error from
// Read, so reading stops at that sector; the dump controller decides
// whether to retry.
func (s *Stream) LastBlockCorrupted() bool {
	return s.lastBlockCorrupted
}

// Digests returns the hex-encoded digest for every algorithm this
// stream computed, retrievable once the stream has been read to
// completion (spec §4.5).
func (s *Stream) Digests() map[string]string {
	out := make(map[string]string, len(s.hashes))
	for name, h := range s.hashes {
		out[name] = fmt.Sprintf("%x", h.Sum(nil))
	}
	return out
}

// Read implements io.Reader, decrypting and hashing sectors as needed
// to satisfy the caller's buffer.
func (s *Stream) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if len(s.pending) == 0 {
			if s.remaining == 0 {
				break
			}
			if err := s.fillNextSector(); err != nil {
				return total, err
			}
		}

		n := copy(p[total:], s.pending)
		s.pending = s.pending[n:]
		total += n
	}

	if total == 0 && s.remaining == 0 && len(s.pending) == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// fillNextSector reads and, if required, decrypts the next sector,
// truncates it to the file's remaining length, hashes the emitted
// bytes, and stages them in s.pending.
func (s *Stream) fillNextSector() error {
	n := s.nextSector
	s.lastBlockCorrupted = false

	ciphertext, err := s.device.ReadSectors(n, 1)
	if err != nil || uint64(len(ciphertext)) != sectorcipher.SectorSize {
		s.lastBlockCorrupted = true
		return fmt.Errorf("decstream: read sector %d: %w", n, err)
	}

	var plaintext []byte
	if types.AnyContains(s.unprotected, n) {
		plaintext = ciphertext
	} else {
		iv, err := s.device.SectorIV(n)
		if err != nil {
			s.lastBlockCorrupted = true
			return fmt.Errorf("decstream: sector %d IV: %w", n, err)
		}
		plaintext, err = sectorcipher.DecryptSector(s.key, ciphertext, iv)
		if err != nil {
			s.lastBlockCorrupted = true
			return fmt.Errorf("decstream: decrypt sector %d: %w", n, err)
		}
	}

	emit := plaintext
	if uint64(len(emit)) > s.remaining {
		emit = emit[:s.remaining]
	}
	for _, h := range s.hashes {
		h.Write(emit)
	}

	s.remaining -= uint64(len(emit))
	s.pending = emit
	s.nextSector++
	s.sectorPos.Store(s.nextSector)
	return nil
}
