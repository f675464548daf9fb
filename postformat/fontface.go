package postformat

import (
	"strings"

	"golang.org/x/text/cases"

	"critcss/css"
)

// font-size keywords which end size part of font shorthand
var fontSizeKeywords = map[string]bool{
	"xx-small": true, "x-small": true, "small": true, "medium": true,
	"large": true, "x-large": true, "xx-large": true, "xxx-large": true,
	"smaller": true, "larger": true,
}

// normalizeFamily unquotes family name and folds its case.
func normalizeFamily(name string) string {
	name = css.Unquote(strings.TrimSpace(name))
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// referencedFamilies collects font families used by declarations outside of
// @font-face rules. Custom property values are treated as possible families
// since they may end up in font-family through var().
func referencedFamilies(nodes []css.Node) map[string]bool {
	families := make(map[string]bool)
	add := func(list string) {
		for _, f := range css.SplitList(list) {
			families[normalizeFamily(f)] = true
		}
	}
	isFontFace := func(at *css.AtRule) bool { return at.BaseName() == "font-face" }

	outside(nodes, isFontFace, func(d css.Declaration) {
		switch {
		case d.IsCustom():
			add(d.Value)
		case strings.EqualFold(d.Property, "font-family"):
			add(d.Value)
		case strings.EqualFold(d.Property, "font"):
			add(shorthandFamilies(d.Value))
		}
	})
	return families
}

// shorthandFamilies returns family list part of font shorthand value, it
// follows font size (and optional line height) which is mandatory.
func shorthandFamilies(value string) string {
	list := css.SplitList(value)
	if len(list) == 0 {
		return ""
	}
	words := strings.Fields(list[0])
	last := -1
	for i, w := range words {
		if isFontSize(w) {
			last = i
		}
	}
	if last >= 0 {
		words = words[last+1:]
	}
	// everything left in the first item is a family name, possibly with spaces
	list[0] = strings.Join(words, " ")
	return strings.Join(list, ",")
}

func isFontSize(w string) bool {
	if strings.Contains(w, "/") || fontSizeKeywords[strings.ToLower(w)] {
		return true
	}
	c := w[0]
	return (c >= '0' && c <= '9') || c == '.' || strings.HasPrefix(strings.ToLower(w), "calc(")
}

// declaredFamily returns family name of @font-face or empty string.
func declaredFamily(at *css.AtRule) string {
	for _, d := range at.Declarations {
		if strings.EqualFold(d.Property, "font-family") {
			return normalizeFamily(d.Value)
		}
	}
	return ""
}

// RemoveUnusedFontFaces removes @font-face rules declaring family nothing
// else in the stylesheet refers to, including ones without family at all.
func RemoveUnusedFontFaces(nodes []css.Node) []css.Node {
	families := referencedFamilies(nodes)
	return filter{
		keepNode: func(n css.Node) bool {
			if n.AtRule == nil || n.AtRule.BaseName() != "font-face" {
				return true
			}
			family := declaredFamily(n.AtRule)
			return family != "" && families[family]
		},
	}.apply(nodes)
}
