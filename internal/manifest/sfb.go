// Package manifest parses the two small metadata files the disc
// identifier reads from the mounted disc: PS3_DISC.SFB at the mount
// root and PS3_GAME/PARAM.SFO (spec §4.3, C3). Both are simple
// NUL-terminated key/value tables; neither carries path data or large
// blobs, so they are read whole into memory.
package manifest

import (
	"bytes"
	"fmt"
	"strings"
)

const sfbMagic = ".SFB"

// SFB holds the fields the engine consumes from PS3_DISC.SFB (spec §4.3
// step 2): HYBRID_FLAG, which must contain "g" for a game disc, and
// TITLE_ID.
type SFB struct {
	HybridFlag string
	TitleID    string
	Raw        []byte // exact bytes, for the raw-device byte-for-byte match in spec §4.3 step 5
}

// IsGameDisc reports whether HybridFlag marks this as a game disc.
func (s SFB) IsGameDisc() bool {
	return strings.Contains(s.HybridFlag, "g")
}

// ParseSFB parses a PS3_DISC.SFB key/value manifest: a 4-byte magic
// followed by a sequence of NUL-terminated "KEY=value" entries, itself
// terminated by an empty entry.
func ParseSFB(data []byte) (SFB, error) {
	if len(data) < len(sfbMagic) || string(data[:len(sfbMagic)]) != sfbMagic {
		return SFB{}, fmt.Errorf("manifest: not a PS3_DISC.SFB file (bad magic)")
	}

	out := SFB{Raw: data}
	body := data[len(sfbMagic):]
	for _, entry := range bytes.Split(body, []byte{0}) {
		if len(entry) == 0 {
			continue
		}
		key, value, ok := cutOnce(string(entry), '=')
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "HYBRID_FLAG":
			out.HybridFlag = strings.TrimSpace(value)
		case "TITLE_ID":
			out.TitleID = strings.TrimSpace(value)
		}
	}
	return out, nil
}

func cutOnce(s string, sep byte) (before, after string, ok bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
