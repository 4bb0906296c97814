package model

import (
	"sort"
	"strings"
	"unicode"
)

// StarFlag marks an item as starred in the newsboat flags column.
const StarFlag = 'S'

// NormalizeFlags reduces a flags string to its canonical form: alphabetic
// characters only, deduplicated without regard to case (first occurrence
// wins), sorted ascending. The empty string is the canonical "no flags".
// Normalizing an already-normalized string is a no-op.
func NormalizeFlags(flags string) string {
	seen := make(map[rune]bool, len(flags))
	var kept []rune
	for _, r := range flags {
		if !unicode.IsLetter(r) {
			continue
		}
		key := unicode.ToLower(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
	return string(kept)
}

// HasFlag reports whether the normalized form of flags contains f.
func HasFlag(flags string, f rune) bool {
	return strings.ContainsRune(NormalizeFlags(flags), f)
}

// AddFlag returns the normalized flags string with f present.
func AddFlag(flags string, f rune) string {
	return NormalizeFlags(flags + string(f))
}

// RemoveFlag returns the normalized flags string with f absent.
func RemoveFlag(flags string, f rune) string {
	normalized := NormalizeFlags(flags)
	return strings.ReplaceAll(normalized, string(f), "")
}
