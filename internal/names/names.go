// Package names normalizes place and region names coming out of the
// source datasets: ASCII folding for names lacking an ASCII form and
// cleanup of the multi-valued name fields both sources ship.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips combining marks from s, turning "São Tomé" into "Sao Tome".
// Characters with no decomposition (Cyrillic, CJK) pass through unchanged,
// matching how the sources fill their own ASCII columns. Returns s when
// the transform fails.
func Fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		return s
	}
	return out
}

// SplitList splits a multi-valued source field on sep and cleans the
// result: entries are trimmed, empties and the literal NA marker dropped,
// and duplicates removed preserving first-seen order. The pipe character
// is reserved as the output column separator, so any pipe left inside an
// entry (possible when sep is a comma) is rewritten to a slash.
func SplitList(raw, sep string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	var out []string
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "|", "/"))
		if p == "" || p == "NA" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// MergeLists concatenates name lists preserving order and dropping
// duplicates across lists.
func MergeLists(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
