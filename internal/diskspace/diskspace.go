// Package diskspace answers one question for the dump controller: how
// many bytes are free under a given output path (spec §4.6 step 2,
// "if the destination volume reports less free space than total_bytes
// + 100 KiB, log a warning but proceed"). Platform-specific lookups
// live behind build tags, following the same split as internal/drives.
package diskspace

// Reserve is the slack spec §4.6 step 2 adds on top of the dump's total
// byte count before comparing against free space.
const Reserve = 100 * 1024

// Free returns the number of free bytes on the volume containing path.
// A lookup failure is not fatal to the caller; it returns the error so
// the engine's Dump can log and proceed rather than abort, matching
// the step's "log a warning but proceed" wording.
func Free(path string) (uint64, error) {
	return platformFree(path)
}
