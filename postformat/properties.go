package postformat

import (
	"fmt"
	"regexp"

	"critcss/common"
	"critcss/css"
)

// DefaultPropertiesToRemove lists declarations which do not influence first paint.
var DefaultPropertiesToRemove = []string{
	`(.*)transition(.*)`,
	`cursor`,
	`pointer-events`,
	`(-webkit-)?tap-highlight-color`,
	`(.*)user-select`,
}

// CompilePatterns compiles case insensitive property patterns. Patterns are
// not anchored, so "transition" matches "-webkit-transition-delay" as well.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, common.WithKind(common.KindInput, fmt.Errorf("bad property pattern %q: %w", p, err))
		}
		res = append(res, re)
	}
	return res, nil
}

// RemoveProperties removes declarations with property matching any of patterns.
func RemoveProperties(nodes []css.Node, patterns []*regexp.Regexp) []css.Node {
	return filter{
		keepDecl: func(d css.Declaration) bool {
			for _, re := range patterns {
				if re.MatchString(d.Property) {
					return false
				}
			}
			return true
		},
	}.apply(nodes)
}
