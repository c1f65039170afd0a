package types

import "encoding/hex"

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// ReferenceHashes maps source_path -> algorithm -> hex digest, as parsed
// from IRD per-file hash records. At least MD5 is expected; SHA1/SHA256
// are accepted when present.
type ReferenceHashes map[string]map[string]string

// Algorithm names used throughout the stream and validator.
const (
	AlgoMD5    = "md5"
	AlgoSHA1   = "sha1"
	AlgoSHA256 = "sha256"
)

// DetectionProbe is the known-plaintext sector used to test candidate keys
// (spec §3/§4.4). It is built from the first discoverable probe file, in
// priority order.
type DetectionProbe struct {
	SectorNumber   uint64
	ExpectedPrefix []byte
	SectorIV       [16]byte
}

// ProbeCandidate names one of the fixed, priority-ordered known-plaintext
// files the disc identifier searches for when building a DetectionProbe.
type ProbeCandidate struct {
	Path           string
	ExpectedPrefix []byte
}

// ProbeCandidates is the fixed priority order from spec §3: LIC.DAT is
// tried before EBOOT.BIN.
var ProbeCandidates = []ProbeCandidate{
	{
		Path:           `\PS3_GAME\LICDIR\LIC.DAT`,
		ExpectedPrefix: []byte("PS3LICDA"),
	},
	{
		Path:           `\PS3_GAME\USRDIR\EBOOT.BIN`,
		ExpectedPrefix: []byte{'S', 'C', 'E', 0x00, 0x00, 0x00, 0x00, 0x02},
	},
}

// IRDFileHash is one per-file MD5 reference hash as stored in an IRD
// archive, keyed by the file's start sector rather than its path (IRD
// archives record hashes against disc offsets; the engine resolves these
// against FileRecord.StartSector once the raw file list is known, via
// ResolveReferenceHashes).
type IRDFileHash struct {
	StartSector uint64
	MD5         [16]byte
}

// ResolveReferenceHashes maps sector-keyed IRD hashes onto file paths using
// the file list obtained from the ISO-9660 reader, producing the
// path-keyed ReferenceHashes the validator (C7) consumes. Hashes whose
// sector does not match any known file are dropped with no error: spec §7
// treats an unmatched file as "no reference" (-> Unknown), not a hard
// failure.
func ResolveReferenceHashes(files []FileRecord, hashes []IRDFileHash) ReferenceHashes {
	bySector := make(map[uint64]string, len(files))
	for _, f := range files {
		bySector[f.StartSector] = f.SourcePath
	}

	out := make(ReferenceHashes)
	for _, h := range hashes {
		path, ok := bySector[h.StartSector]
		if !ok {
			continue
		}
		out[path] = map[string]string{
			AlgoMD5: hexEncode(h.MD5[:]),
		}
	}
	return out
}
