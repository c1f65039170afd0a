package sectorcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecryptSector_Deterministic(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	var iv [16]byte
	for i := range iv {
		iv[i] = byte(0xA0 + i)
	}
	ciphertext := make([]byte, SectorSize)
	for i := range ciphertext {
		ciphertext[i] = byte(i % 256)
	}

	first, err := DecryptSector(key, ciphertext, iv)
	require.NoError(t, err)
	second, err := DecryptSector(key, ciphertext, iv)
	require.NoError(t, err)

	assert.Equal(t, first, second, "decrypting identical (key, ciphertext, iv) must yield identical plaintext")
	assert.Len(t, first, SectorSize)
}

func TestDecryptSector_RejectsWrongSize(t *testing.T) {
	var key [KeySize]byte
	var iv [16]byte
	_, err := DecryptSector(key, make([]byte, 100), iv)
	assert.Error(t, err)
}

func TestMatchesPrefix(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i * 3)
	}
	var iv [16]byte

	// Encrypt a known plaintext so we have a matching ciphertext fixture.
	plaintext := make([]byte, SectorSize)
	copy(plaintext, []byte("PS3LICDA"))
	ciphertext := encryptForTest(t, key, plaintext, iv)

	ok, err := MatchesPrefix(key, ciphertext, iv, []byte("PS3LICDA"))
	require.NoError(t, err)
	assert.True(t, ok)

	var wrongKey [KeySize]byte
	wrongKey[0] = 0xFF
	ok, err = MatchesPrefix(wrongKey, ciphertext, iv, []byte("PS3LICDA"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func encryptForTest(t *testing.T, key [KeySize]byte, plaintext []byte, iv [16]byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, plaintext)
	return out
}
