package postformat

import (
	"regexp"

	"critcss/css"
)

// DefaultMaxEmbeddedBase64Length is largest embedded payload kept, in characters.
const DefaultMaxEmbeddedBase64Length = 1000

var embeddedData = regexp.MustCompile(`(?i)data:[^,;"')\s]*(?:;[^,;"')\s]*)*;base64,([A-Za-z0-9+/=_\-]*)`)

// RemoveEmbeddedData removes declarations embedding base64 payload longer
// than limit characters. Negative limit disables the check.
func RemoveEmbeddedData(nodes []css.Node, limit int) []css.Node {
	if limit < 0 {
		return filter{}.apply(nodes)
	}
	return filter{
		keepDecl: func(d css.Declaration) bool {
			return longestPayload(d.Value) <= limit
		},
	}.apply(nodes)
}

func longestPayload(value string) int {
	longest := 0
	for _, m := range embeddedData.FindAllStringSubmatch(value, -1) {
		longest = max(longest, len(m[1]))
	}
	return longest
}
