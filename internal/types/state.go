package types

import "time"

// ValidationStatus is the overall dump verdict; it only ever moves
// Ok -> Unknown -> Failed, never backward (spec §4.7).
type ValidationStatus int

const (
	ValidationOk ValidationStatus = iota
	ValidationUnknown
	ValidationFailed
)

func (v ValidationStatus) String() string {
	switch v {
	case ValidationOk:
		return "Ok"
	case ValidationUnknown:
		return "Unknown"
	case ValidationFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Downgrade moves the status from Ok to Unknown; it is a no-op once the
// status is already Unknown or Failed (spec §4.7: "Ok -> Unknown on first
// file with no reference").
func (v *ValidationStatus) Downgrade() {
	if *v == ValidationOk {
		*v = ValidationUnknown
	}
}

// Fail forces the status to Failed; Failed is terminal for the run.
func (v *ValidationStatus) Fail() {
	*v = ValidationFailed
}

// BrokenFile records one file the controller could not verify, with the
// reason string used verbatim in spec §8 invariant 7 ("missing",
// "corrupted", "failed to read").
type BrokenFile struct {
	Path   string
	Reason string
}

// DumpState is the live, observable state of an in-progress dump. It is
// mutated only by the dump controller (C6); readers take a snapshot via
// Engine.Progress(), modeled on the teacher's app.ProgressUpdate.
type DumpState struct {
	CurrentFileIndex int
	TotalFileCount   int
	CurrentSector    uint64
	TotalSectors     uint64
	ValidationStatus ValidationStatus
	BrokenFiles      []BrokenFile
	StartedAt        time.Time
	BytesCopied      int64
	TotalBytes       int64
}

// Percent returns file-count completion, 0-100.
func (s DumpState) Percent() int {
	if s.TotalFileCount == 0 {
		return 0
	}
	return int(int64(s.CurrentFileIndex) * 100 / int64(s.TotalFileCount))
}

// Rate returns bytes/sec copied so far, 0 if no time has elapsed.
func (s DumpState) Rate() float64 {
	elapsed := time.Since(s.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.BytesCopied) / elapsed
}

// Clone returns a deep-enough copy for safe concurrent reads (BrokenFiles
// is copied so callers cannot observe a slice the controller is still
// appending to).
func (s DumpState) Clone() DumpState {
	out := s
	out.BrokenFiles = append([]BrokenFile(nil), s.BrokenFiles...)
	return out
}
