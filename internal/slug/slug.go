// Package slug derives URL and topic safe identifiers from hub labels.
//
// Every public lookup in harmony-api (hubs, activities, devices, commands)
// is keyed by a slug computed with Resolve.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Resolve converts a label into a slug.
//
// The label is lowercased, diacritics are folded ("Télé" becomes "tele"),
// every run of characters outside [a-z0-9] becomes a single hyphen and
// leading or trailing hyphens are trimmed. Resolve is pure and idempotent:
// Resolve(Resolve(x)) == Resolve(x).
func Resolve(label string) string {
	folded, _, err := transform.String(foldDiacritics(), label)
	if err != nil {
		folded = label
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// ResolveOr resolves label, falling back in order to each fallback when
// the label has no ASCII letters or digits (for example "日本" or "!!!").
// It returns the first non-empty slug, or "" when every candidate is empty.
func ResolveOr(label string, fallbacks ...string) string {
	if s := Resolve(label); s != "" {
		return s
	}
	for _, f := range fallbacks {
		if s := Resolve(f); s != "" {
			return s
		}
	}
	return ""
}

// foldDiacritics decomposes runes and strips the combining marks.
// A transformer is stateful, so a fresh chain is built per call.
func foldDiacritics() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Slugged is implemented by every entity that can be looked up by slug.
type Slugged interface {
	GetSlug() string
}

// Find returns the first item whose slug equals s.
//
// The scan is linear; hub catalogs hold tens of entries. A nil or empty
// collection (for example one not yet populated by the first refresh)
// simply reports not found.
func Find[T Slugged](items []T, s string) (T, bool) {
	for _, item := range items {
		if item.GetSlug() == s {
			return item, true
		}
	}
	var zero T
	return zero, false
}
