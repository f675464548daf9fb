package critical

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchKind tells how Matcher value is interpreted.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPattern
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPattern:
		return "pattern"
	}
	return fmt.Sprintf("MatchKind(%d)", int(k))
}

// Matcher is a single force-include entry: either exact selector text or a
// regular expression source with its flags.
type Matcher struct {
	Kind  MatchKind
	Value string
	Flags string
}

// Exact returns matcher comparing whole selector text.
func Exact(selector string) Matcher {
	return Matcher{Kind: MatchExact, Value: selector}
}

// Pattern returns matcher searching selector text with regular expression.
func Pattern(source, flags string) Matcher {
	return Matcher{Kind: MatchPattern, Value: source, Flags: flags}
}

// ParseMatcher reads command line form of a matcher: "/source/flags" is a
// pattern, anything else is an exact selector.
func ParseMatcher(s string) (Matcher, error) {
	s = strings.TrimSpace(s)
	if len(s) > 1 && s[0] == '/' {
		if end := strings.LastIndexByte(s, '/'); end > 0 {
			m := Pattern(s[1:end], s[end+1:])
			if _, err := m.compile(); err != nil {
				return Matcher{}, err
			}
			return m, nil
		}
	}
	if s == "" {
		return Matcher{}, fmt.Errorf("empty force-include selector")
	}
	return Exact(s), nil
}

func (m Matcher) String() string {
	if m.Kind == MatchPattern {
		return "/" + m.Value + "/" + m.Flags
	}
	return m.Value
}

// MarshalText implements encoding.TextMarshaler so matchers could be kept in configuration.
func (m Matcher) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Matcher) UnmarshalText(text []byte) error {
	v, err := ParseMatcher(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// compile translates pattern flags. Flags without meaning for matching
// single selector (global, sticky, unicode) are accepted and ignored.
func (m Matcher) compile() (*regexp.Regexp, error) {
	var goFlags strings.Builder
	for _, f := range m.Flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(goFlags.String(), f) {
				goFlags.WriteRune(f)
			}
		case 'g', 'u', 'y':
		default:
			return nil, fmt.Errorf("unsupported flag %q in pattern /%s/%s", f, m.Value, m.Flags)
		}
	}
	src := m.Value
	if goFlags.Len() > 0 {
		src = "(?" + goFlags.String() + ")" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("bad pattern /%s/%s: %w", m.Value, m.Flags, err)
	}
	return re, nil
}

// Baseline is always forced, whatever caller asks for.
var Baseline = []Matcher{
	Exact("*"),
	Exact("*:before"),
	Exact("*:after"),
	Exact("html"),
	Exact("body"),
}

// ForceIncluder checks selectors against union of baseline and caller matchers.
type ForceIncluder struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewForceIncluder compiles matchers, baseline is added automatically.
func NewForceIncluder(matchers []Matcher) (*ForceIncluder, error) {
	f := &ForceIncluder{exact: make(map[string]struct{})}
	for _, m := range append(append([]Matcher{}, Baseline...), matchers...) {
		switch m.Kind {
		case MatchExact:
			f.exact[strings.TrimSpace(m.Value)] = struct{}{}
		case MatchPattern:
			re, err := m.compile()
			if err != nil {
				return nil, err
			}
			f.patterns = append(f.patterns, re)
		default:
			return nil, fmt.Errorf("unknown matcher kind %s", m.Kind)
		}
	}
	return f, nil
}

// Match reports whether selector has to be kept without asking renderer.
func (f *ForceIncluder) Match(selector string) bool {
	selector = strings.TrimSpace(selector)
	if _, ok := f.exact[selector]; ok {
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(selector) {
			return true
		}
	}
	return false
}
