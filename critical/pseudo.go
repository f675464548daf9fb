package critical

import (
	"strings"

	"github.com/andybalholm/cascadia"
)

// interaction states which never exist at initial paint
var interactivePseudoClasses = map[string]bool{
	"hover":          true,
	"active":         true,
	"focus":          true,
	"focus-within":   true,
	"focus-visible":  true,
	"-moz-focusring": true,
}

// single colon forms of pseudo elements
var legacyPseudoElements = map[string]bool{
	"before":       true,
	"after":        true,
	"first-line":   true,
	"first-letter": true,
}

// pseudo is a pseudo-class or pseudo-element occurrence in selector text.
type pseudo struct {
	start, end int // s[start:end] is the whole thing including argument
	name       string
	element    bool // written with double colon
	arg        string
	hasArg     bool
}

// scanPseudos calls fn for every top level pseudo in s, arguments of
// functional pseudos are not descended into.
func scanPseudos(s string, fn func(p pseudo)) {
	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '\\':
			i += 2
		case '"', '\'':
			i = skipString(s, i)
		case '[':
			i = skipUntil(s, i, ']')
		case '(':
			i = skipUntil(s, i, ')')
		case ':':
			p := pseudo{start: i}
			j := i + 1
			if j < len(s) && s[j] == ':' {
				p.element = true
				j++
			}
			nameStart := j
			for j < len(s) && isNameChar(s[j]) {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			p.name = strings.ToLower(s[nameStart:min(j, len(s))])
			if j < len(s) && s[j] == '(' {
				end := skipUntil(s, j, ')')
				p.hasArg = true
				argEnd := end
				if argEnd > j+1 && s[argEnd-1] == ')' {
					argEnd--
				}
				p.arg = s[j+1 : argEnd]
				j = end
			}
			p.end = min(j, len(s))
			fn(p)
			i = p.end
		default:
			i++
		}
	}
}

func isNameChar(c byte) bool {
	return c == '-' || c == '_' || c == '\\' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// skipString returns index right after the string literal starting at s[i].
func skipString(s string, i int) int {
	q := s[i]
	for i++; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			return i + 1
		}
	}
	return len(s)
}

// skipUntil returns index right after the bracket closing one at s[i],
// nesting of the same bracket and string literals are honored.
func skipUntil(s string, i int, closing byte) int {
	opening := s[i]
	depth := 0
	for i < len(s) {
		switch c := s[i]; {
		case c == '\\':
			i += 2
			continue
		case c == '"' || c == '\'':
			i = skipString(s, i)
			continue
		case c == opening:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return len(s)
}

// isInteractive reports whether selector depends on user interaction.
// States under :not() do not count since negation holds at initial paint.
func isInteractive(selector string) bool {
	found := false
	scanPseudos(selector, func(p pseudo) {
		switch {
		case found:
		case !p.element && interactivePseudoClasses[p.name]:
			found = true
		case p.hasArg && p.name != "not" && isInteractive(p.arg):
			found = true
		}
	})
	return found
}

// queryForm is selector reduced to something rendering engine could match
// against elements.
type queryForm struct {
	query  string
	vendor bool // selector has vendor prefixed pseudo-classes
}

// toQuery strips pseudo-elements and :visited, vendor prefixed
// pseudo-classes are stripped when stripVendor is set. Compounds left
// empty become universal selector, completely empty result means nothing
// is left to query.
func toQuery(selector string, stripVendor bool) queryForm {
	var (
		qf   queryForm
		sb   strings.Builder
		last int
	)
	scanPseudos(selector, func(p pseudo) {
		drop := false
		switch {
		case p.element, legacyPseudoElements[p.name], p.name == "visited":
			drop = true
		case strings.HasPrefix(p.name, "-"):
			qf.vendor = true
			drop = stripVendor
		}
		if drop {
			sb.WriteString(selector[last:p.start])
			last = p.end
		}
	})
	sb.WriteString(selector[last:])

	qf.query = fillCompounds(sb.String())
	return qf
}

// fillCompounds normalizes combinators and replaces empty compounds with "*".
// Result is empty when there are no non-empty compounds at all.
func fillCompounds(s string) string {
	s = strings.TrimSpace(s)
	var (
		compounds   []string
		combinators []string
		cur         strings.Builder
	)
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\':
			end := min(i+2, len(s))
			cur.WriteString(s[i:end])
			i = end
		case c == '"' || c == '\'':
			end := skipString(s, i)
			cur.WriteString(s[i:end])
			i = end
		case c == '[':
			end := skipUntil(s, i, ']')
			cur.WriteString(s[i:end])
			i = end
		case c == '(':
			end := skipUntil(s, i, ')')
			cur.WriteString(s[i:end])
			i = end
		case isCombinator(c):
			comb := " "
			for i < len(s) && isCombinator(s[i]) {
				if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' && s[i] != '\f' {
					comb = " " + string(s[i]) + " "
				}
				i++
			}
			compounds = append(compounds, cur.String())
			combinators = append(combinators, comb)
			cur.Reset()
		default:
			cur.WriteByte(c)
			i++
		}
	}
	compounds = append(compounds, cur.String())

	empty := true
	for _, c := range compounds {
		if c != "" {
			empty = false
			break
		}
	}
	if empty {
		return ""
	}

	var sb strings.Builder
	for i, c := range compounds {
		if i > 0 {
			sb.WriteString(combinators[i-1])
		}
		if c == "" {
			c = "*"
		}
		sb.WriteString(c)
	}
	return sb.String()
}

func isCombinator(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '>', '+', '~':
		return true
	}
	return false
}

// strictReject returns reason for refusing to query selector in strict
// mode or empty string when selector is acceptable.
func strictReject(qf queryForm) string {
	switch {
	case qf.vendor:
		return "vendor prefixed pseudo-class"
	case qf.query == "":
		return "nothing left after stripping pseudo-elements"
	}
	if _, err := cascadia.Parse(qf.query); err != nil {
		return "unparsable selector: " + err.Error()
	}
	return ""
}
