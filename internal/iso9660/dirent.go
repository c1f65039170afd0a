package iso9660

import (
	"errors"
	"fmt"
	"time"
)

// direntHeader is the subset of an ECMA-119 directory record this package
// needs: extent location, data length, recording timestamp, flags, and
// file identifier. Extended attribute records are rejected rather than
// skipped, since no disc in the wild uses them here.
type direntHeader struct {
	extent     uint32
	size       uint32
	recordedAt time.Time
	flags      uint8
	name       string
}

func (d *direntHeader) parse(data []byte) error {
	if len(data) == 0 {
		return errors.New("iso9660: empty directory record")
	}
	recLen := uint8(data[0])
	if recLen < 34 {
		return fmt.Errorf("iso9660: directory record too short (%d bytes)", recLen)
	}
	if data[1] != 0 {
		return errors.New("iso9660: extended attribute records are not supported")
	}

	d.extent = parseBothByteOrder32(data[2:10])
	d.size = parseBothByteOrder32(data[10:18])

	t, err := parseRecordingDateTime(data[18:25])
	if err != nil {
		return err
	}
	d.recordedAt = t

	d.flags = data[25]

	nameLen := int(data[32])
	if nameLen == 0 {
		return errors.New("iso9660: directory record without an identifier")
	}
	if nameLen == 1 && (data[33] == 0 || data[33] == 1) {
		if data[33] == 0 {
			d.name = "."
		} else {
			d.name = ".."
		}
		return nil
	}
	if 33+nameLen > len(data) {
		return errors.New("iso9660: directory record identifier overruns record length")
	}
	d.name = string(data[33 : 33+nameLen])
	return nil
}

// parseBothByteOrder32 reads a both-byte-order field (little-endian half
// followed by big-endian half); only the little-endian half is used,
// matching every real-world reader's behavior.
func parseBothByteOrder32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// parseRecordingDateTime parses the 7-byte directory-record date/time
// field: years since 1900, month, day, hour, minute, second, then a
// GMT-offset byte in 15-minute increments.
func parseRecordingDateTime(b []byte) (time.Time, error) {
	if len(b) < 7 {
		return time.Time{}, errors.New("iso9660: short recording date/time field")
	}
	year := 1900 + int(b[0])
	month := int(b[1])
	day := int(b[2])
	hour := int(b[3])
	minute := int(b[4])
	second := int(b[5])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		// A handful of discs ship an all-zero field for entries nobody
		// checks; treat it as "unknown" instead of failing the whole walk.
		return time.Time{}, nil
	}
	offsetQuarterHours := int8(b[6])
	loc := time.FixedZone("", int(offsetQuarterHours)*15*60)
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc).UTC(), nil
}
