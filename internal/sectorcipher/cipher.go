// Package sectorcipher implements the PS3 disc sector cipher: AES-128-CBC
// decryption of a single 2048-byte sector given a key and a per-sector IV
// (spec §4.2, C2). It has no state and no dependency on any other
// component, the way the teacher's pkg/crypto/encryption.go keeps
// EncryptData/DecryptData pure functions of (key, data, mode, tweak).
package sectorcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// KeySize is the PS3 disc key length in bytes.
const KeySize = 16

// SectorSize is the PS3 Blu-ray sector size in bytes.
const SectorSize = 2048

// DecryptSector decrypts exactly one 2048-byte sector using AES-128-CBC
// with the given key and IV. It is a pure function: identical inputs
// always yield identical output, and it mutates no shared state, which is
// what lets the key selector (C4) run it from multiple goroutines
// concurrently without synchronization (spec §4.2, §5).
func DecryptSector(key [KeySize]byte, ciphertext []byte, iv [16]byte) ([]byte, error) {
	if len(ciphertext) != SectorSize {
		return nil, fmt.Errorf("sectorcipher: ciphertext must be %d bytes, got %d", SectorSize, len(ciphertext))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("sectorcipher: new cipher: %w", err)
	}

	plaintext := make([]byte, SectorSize)
	ivCopy := iv
	cipher.NewCBCDecrypter(block, ivCopy[:]).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// MatchesPrefix decrypts ciphertext with key/iv and reports whether the
// resulting plaintext begins with expectedPrefix. Used by the key selector
// (C4) to test a candidate key against the DetectionProbe.
func MatchesPrefix(key [KeySize]byte, ciphertext []byte, iv [16]byte, expectedPrefix []byte) (bool, error) {
	plaintext, err := DecryptSector(key, ciphertext, iv)
	if err != nil {
		return false, err
	}
	if len(expectedPrefix) > len(plaintext) {
		return false, nil
	}
	for i, b := range expectedPrefix {
		if plaintext[i] != b {
			return false, nil
		}
	}
	return true, nil
}
