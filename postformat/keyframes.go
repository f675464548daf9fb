package postformat

import (
	"strings"

	"critcss/css"
)

// isAnimationProperty matches animation and animation-name including vendor prefixed forms.
func isAnimationProperty(property string) bool {
	p := strings.ToLower(property)
	for _, prefix := range []string{"-webkit-", "-moz-", "-o-", "-ms-"} {
		if strings.HasPrefix(p, prefix) {
			p = p[len(prefix):]
			break
		}
	}
	return p == "animation" || p == "animation-name"
}

// referencedAnimations collects every identifier of animation values, which
// is a superset of keyframes names really used.
func referencedAnimations(nodes []css.Node) map[string]bool {
	names := make(map[string]bool)
	isKeyframes := func(at *css.AtRule) bool { return at.BaseName() == "keyframes" }

	outside(nodes, isKeyframes, func(d css.Declaration) {
		if !isAnimationProperty(d.Property) {
			return
		}
		for _, item := range css.SplitList(d.Value) {
			for _, w := range strings.Fields(item) {
				names[css.Unquote(w)] = true
			}
		}
	})
	return names
}

// RemoveUnusedKeyframes removes @keyframes (any vendor form) nothing refers to.
func RemoveUnusedKeyframes(nodes []css.Node) []css.Node {
	names := referencedAnimations(nodes)
	return filter{
		keepNode: func(n css.Node) bool {
			if n.AtRule == nil || n.AtRule.BaseName() != "keyframes" {
				return true
			}
			return names[css.Unquote(strings.TrimSpace(n.AtRule.Prelude))]
		},
	}.apply(nodes)
}
