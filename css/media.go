package css

import (
	"strconv"
	"strings"

	"critcss/common"
)

// font size browsers use to resolve em and rem in media queries
const mediaQueryEmSize = 16

// MediaQuery represents a single parsed query of @media query list.
type MediaQuery struct {
	Raw         string         // Original media query string
	Type        string         // Media type (e.g., "screen", "print"), empty when omitted
	Negated     bool           // true if "not" modifier was used
	Features    []MediaFeature // Conditions joined with "and"
	Unsupported bool           // syntax we do not evaluate, query is assumed matching
}

// MediaFeature represents a single media feature condition in a media query.
type MediaFeature struct {
	Name  string // Feature name (e.g., "min-width")
	Value string // Feature value (e.g., "600px"), empty for boolean features
}

// ParseMediaQueries parses @media prelude into a list of queries.
func ParseMediaQueries(prelude string) []MediaQuery {
	var list []MediaQuery
	for _, raw := range SplitList(prelude) {
		list = append(list, parseMediaQuery(raw))
	}
	return list
}

func parseMediaQuery(raw string) MediaQuery {
	mq := MediaQuery{Raw: raw}
	s := strings.ToLower(strings.TrimSpace(raw))

	first := true
	for len(s) > 0 {
		s = strings.TrimLeft(s, " \t\r\n")
		if len(s) == 0 {
			break
		}
		if s[0] == '(' {
			end := matchingParen(s)
			if end < 0 {
				mq.Unsupported = true
				return mq
			}
			mq.Features = append(mq.Features, parseMediaFeature(s[1:end], &mq))
			s = s[end+1:]
			first = false
			continue
		}

		word := s
		if i := strings.IndexAny(s, " \t\r\n("); i >= 0 {
			word = s[:i]
		}
		s = s[len(word):]

		switch {
		case word == "and":
		case word == "only" && first:
		case word == "not" && first:
			mq.Negated = true
		case mq.Type == "" && len(mq.Features) == 0:
			mq.Type = word
		default:
			// "or", level 4 syntax and garbage
			mq.Unsupported = true
			return mq
		}
		first = false
	}
	return mq
}

func parseMediaFeature(s string, mq *MediaQuery) MediaFeature {
	if strings.ContainsAny(s, "<>=(") {
		// range context or nested conditions
		mq.Unsupported = true
		return MediaFeature{Name: strings.TrimSpace(s)}
	}
	name, value, _ := strings.Cut(s, ":")
	return MediaFeature{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}
}

// matchingParen returns index of parenthesis closing the one at s[0].
func matchingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Matches returns true if this media query could apply to a screen with the
// given viewport. Anything not understood is considered matching.
func (mq MediaQuery) Matches(vp common.Viewport, keepLarger bool) bool {
	// unknown media types never match in browsers, same as known non screen ones
	typeMatches := mq.Type == "" || mq.Type == "all" || mq.Type == "screen"

	if mq.Negated {
		// "not print" matches screen, anything more involved is kept
		return !typeMatches || len(mq.Features) > 0 || mq.Unsupported
	}
	if !typeMatches {
		return false
	}
	if mq.Unsupported || keepLarger {
		return true
	}
	for _, f := range mq.Features {
		if !f.Matches(vp) {
			return false
		}
	}
	return true
}

// Matches checks lower bounds of viewport size. Upper bounds and other
// features are considered matching so smaller screens styles survive.
func (f MediaFeature) Matches(vp common.Viewport) bool {
	var limit int
	switch f.Name {
	case "min-width", "min-device-width":
		limit = vp.Width
	case "min-height", "min-device-height":
		limit = vp.Height
	default:
		return true
	}
	px, ok := lengthToPixels(f.Value)
	if !ok {
		return true
	}
	return px <= float64(limit)
}

func lengthToPixels(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	numEnd := 0
	for i, r := range v {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}
	if numEnd == 0 {
		return 0, false
	}
	num, err := strconv.ParseFloat(v[:numEnd], 64)
	if err != nil {
		return 0, false
	}
	switch unit := v[numEnd:]; unit {
	case "px":
		return num, true
	case "em", "rem":
		return num * mediaQueryEmSize, true
	case "":
		return num, num == 0
	}
	return 0, false
}

// MatchesViewport evaluates @media prelude, query list matches if any of its queries does.
func MatchesViewport(prelude string, vp common.Viewport, keepLarger bool) bool {
	queries := ParseMediaQueries(prelude)
	if len(queries) == 0 {
		return true
	}
	for _, q := range queries {
		if q.Matches(vp, keepLarger) {
			return true
		}
	}
	return false
}
