package discid

import (
	"strings"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// DefaultTemplate matches the default naming spec S1 expects: product
// code, title, and region.
const DefaultTemplate = "{product_code} - {title} [{region}]"

// forbiddenChars are characters that cannot appear in a path segment on
// either Windows or Unix (spec §4.3 "Output-directory naming").
const forbiddenChars = `<>:"/\|?*`

// RenderOutputDir expands template's placeholders against identity and
// sanitizes the result into a single safe path segment (spec §4.3).
func RenderOutputDir(template string, identity types.DiscIdentity) string {
	productCode := identity.ProductCode
	letters, numbers := splitProductCode(productCode)

	name := template
	name = strings.ReplaceAll(name, "{product_code}", productCode)
	name = strings.ReplaceAll(name, "{product_code_letters}", letters)
	name = strings.ReplaceAll(name, "{product_code_numbers}", numbers)
	name = strings.ReplaceAll(name, "{title}", identity.Title)
	name = strings.ReplaceAll(name, "{region}", identity.RegionCode)

	name = stripForbidden(name)
	name = strings.TrimRight(name, ".")
	name = strings.TrimSpace(name)

	if name == "" {
		// spec §9 Open Question (a): an empty rendering falls back to a
		// sentinel that still identifies the disc.
		name = "unknown-" + productCode
	}
	return name
}

func splitProductCode(productCode string) (letters, numbers string) {
	if len(productCode) != 9 {
		return productCode, ""
	}
	return productCode[:4], productCode[4:]
}

func stripForbidden(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(forbiddenChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
