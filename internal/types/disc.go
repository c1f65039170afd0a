// Package types holds the data model shared across the dumping engine:
// disc identity, on-disc file/directory records, key material, and the
// mutable state of an in-progress dump.
package types

import "strings"

// DiscIdentity describes the title being dumped. It is populated once
// during disc identification and never mutated afterward.
type DiscIdentity struct {
	Title       string
	ProductCode string // 9 chars, AAAA#####
	DiscVersion string
	AppVersion  string
	RegionCode  string
}

// regionByLetter implements the total lookup table from spec §4.3: product
// code byte index 2 (the third letter) determines region.
var regionByLetter = map[byte]string{
	'A': "ASIA",
	'E': "EU",
	'H': "HK",
	'J': "JP",
	'K': "KR",
	'P': "JP",
	'T': "JP",
	'U': "US",
}

// RegionForProductCode returns the region for a product code, or "" for any
// code whose third letter is not in the documented table. The lookup is
// total: every input yields a defined (possibly empty) result.
func RegionForProductCode(productCode string) string {
	if len(productCode) < 3 {
		return ""
	}
	letter := strings.ToUpper(productCode)[2]
	return regionByLetter[letter]
}

// NormalizeTitleID takes the SFB/SFO TITLE_ID value and, if it is longer
// than the canonical 9 characters, keeps the first 4 and last 5 characters
// per spec §4.3 step 2.
func NormalizeTitleID(titleID string) string {
	if len(titleID) <= 9 {
		return titleID
	}
	return titleID[:4] + titleID[len(titleID)-5:]
}

// NewDiscIdentity builds a DiscIdentity, deriving RegionCode from
// ProductCode so callers never have to remember to call RegionForProductCode
// themselves.
func NewDiscIdentity(title, productCode, discVersion, appVersion string) DiscIdentity {
	return DiscIdentity{
		Title:       title,
		ProductCode: productCode,
		DiscVersion: discVersion,
		AppVersion:  appVersion,
		RegionCode:  RegionForProductCode(productCode),
	}
}
