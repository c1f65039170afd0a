package types

// UnprotectedRegion is a half-open sector range [Start, End) for which the
// raw device returns plaintext despite the disc being encrypted.
type UnprotectedRegion struct {
	Start uint64
	End   uint64
}

// Contains reports whether sector n falls within the region.
func (r UnprotectedRegion) Contains(n uint64) bool {
	return n >= r.Start && n < r.End
}

// AnyContains reports whether any region in regions contains sector n.
func AnyContains(regions []UnprotectedRegion, n uint64) bool {
	for _, r := range regions {
		if r.Contains(n) {
			return true
		}
	}
	return false
}
