// Package sanitize turns operator-supplied text into safe identifiers, links
// and presentation attributes. Every function is pure and total: bad input
// degrades to an empty or fallback value instead of an error.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxSlugLen is the longest slug Slugify produces.
	MaxSlugLen = 60
	// MaxHrefLen is the longest link Href returns.
	MaxHrefLen = 200
	// MaxAttrLen bounds string values kept by ConfigMap.
	MaxAttrLen = 120

	// FallbackHref replaces any link that is not a same-origin path or an
	// absolute http(s) URL.
	FallbackHref = "/produtos"
)

// AllowedKeys is the whitelist shared by section config and item metadata.
var AllowedKeys = []string{"badgeLabel", "badgeColor", "highlighted", "tagline"}

var sectionIDPattern = regexp.MustCompile(`^[a-z0-9-]{2,60}$`)

// Slugify converts arbitrary text to a lowercase, diacritic-free slug made of
// [a-z0-9-]. Runs of other characters collapse into a single hyphen.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(foldDiacritics(s)))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > MaxSlugLen {
		out = strings.TrimRight(out[:MaxSlugLen], "-")
	}
	return out
}

// foldDiacritics strips combining marks: "Grátis" becomes "Gratis".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SectionID derives a section identifier from an explicit id when one is
// given, otherwise from the title. Collision checks are the caller's job.
func SectionID(explicit, title string) string {
	if strings.TrimSpace(explicit) != "" {
		return Slugify(explicit)
	}
	return Slugify(title)
}

// ValidSectionID reports whether id satisfies the section id format.
func ValidSectionID(id string) bool {
	return sectionIDPattern.MatchString(id)
}

// Href returns raw if it is a same-origin path or an absolute http(s) URL,
// with whitespace, quotes and angle brackets removed. Anything else yields
// FallbackHref.
func Href(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune("\"'`<>", r) {
			continue
		}
		b.WriteRune(r)
	}
	h := b.String()
	lower := strings.ToLower(h)
	switch {
	case h == "":
		return FallbackHref
	case strings.HasPrefix(h, "//"), strings.HasPrefix(h, `/\`):
		// protocol-relative: leaves the origin
		return FallbackHref
	case strings.HasPrefix(h, "/"):
	case strings.HasPrefix(lower, "https://") && len(h) > len("https://"):
	case strings.HasPrefix(lower, "http://") && len(h) > len("http://"):
	default:
		return FallbackHref
	}
	return truncate(h, MaxHrefLen)
}

// ConfigMap keeps only whitelisted keys whose values are strings or bools.
// Strings are truncated to MaxAttrLen characters; other value types are
// dropped. The result is never nil.
func ConfigMap(raw map[string]any, allowed []string) map[string]any {
	out := make(map[string]any, len(allowed))
	for _, key := range allowed {
		v, ok := raw[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			out[key] = truncate(val, MaxAttrLen)
		case bool:
			out[key] = val
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
