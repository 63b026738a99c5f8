// Package normalize holds the small pure helpers used to shape ERP values
// into the form the commerce platform expects.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"stocksync/internal/models"
)

var (
	validate     = validator.New()
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	dashRuns     = regexp.MustCompile(`-{2,}`)
	stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slugify turns free text into a lowercase, dash separated handle. Accents are
// folded to their base letter; anything else outside [a-z0-9] becomes a dash.
func Slugify(s string) string {
	folded, _, err := transform.String(stripAccents, s)
	if err != nil {
		folded = s
	}
	slug := strings.ToLower(folded)
	slug = strings.ReplaceAll(slug, "&", " and ")
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = dashRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// ValidEmail reports whether email is a syntactically valid address.
func ValidEmail(email string) bool {
	if strings.TrimSpace(email) == "" {
		return false
	}
	return validate.Var(email, "required,email") == nil
}

// PlaceholderEmail is used for source customers that carry no email.
func PlaceholderEmail(code string) string {
	return code + "@placeholder.com"
}

// DefaultWarehouseCode picks the tenant's default warehouse. An explicit
// configured code wins when it exists in the set; otherwise the warehouse
// flagged default, then the first non-obsolete warehouse.
func DefaultWarehouseCode(warehouses []models.SourceWarehouse, configured string) string {
	if configured != "" {
		for _, w := range warehouses {
			if strings.EqualFold(w.Code, configured) {
				return w.Code
			}
		}
	}
	for _, w := range warehouses {
		if w.IsDefault && !w.Obsolete {
			return w.Code
		}
	}
	for _, w := range warehouses {
		if !w.Obsolete {
			return w.Code
		}
	}
	return ""
}

// SplitName splits a display name on its first run of whitespace.
func SplitName(full string) (first, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// DefaultString returns fallback when s is blank.
func DefaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}
