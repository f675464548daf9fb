package config

import "unicode/utf8"

const (
	// used when nothing is left of the name after cleaning
	fallbackFileName = "page"
	// most file systems refuse longer names, leave room for suffixes
	maxFileNameLength = 200
)

// finishFileName truncates cleaned name on rune boundary and replaces
// empty result with fallback.
func finishFileName(out string) string {
	if len(out) > maxFileNameLength {
		cut := maxFileNameLength
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	if len(out) == 0 {
		return fallbackFileName
	}
	return out
}
