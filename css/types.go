// Package css turns stylesheet text into an ordered tree of rules and
// at-rules and back, and classifies at-rules by how critical CSS
// selection treats them.
package css

import (
	"strings"
)

// BlockKind describes what an at-rule carries after its prelude.
type BlockKind int

const (
	BlockNone         BlockKind = iota // statement at-rule, f.e. @import
	BlockDeclarations                  // @font-face, @page
	BlockRules                         // @media, @supports, @keyframes
	BlockVerbatim                      // unknown at-rule block kept as raw text
)

// Declaration is a single property: value pair.
type Declaration struct {
	Property  string // lower case, except custom properties
	Value     string // value text with whitespace collapsed
	Important bool
}

// IsCustom returns true for custom properties (--name).
func (d Declaration) IsCustom() bool {
	return strings.HasPrefix(d.Property, "--")
}

// Rule is a plain style rule. Every selector of the comma separated list is
// kept separately so it can be judged on its own.
type Rule struct {
	Selectors    []string
	Declarations []Declaration
}

// AtRule is any construct starting with @.
type AtRule struct {
	Name         string // lower case, without leading @, vendor prefix preserved
	Prelude      string // everything between name and block or semicolon
	Block        BlockKind
	Declarations []Declaration // BlockDeclarations
	Rules        []Node        // BlockRules
	Verbatim     string        // BlockVerbatim
	// Raw is source text of BlockNone at-rule without terminating semicolon,
	// written out unchanged when set
	Raw string
}

// BaseName returns at-rule name with vendor prefix removed, "-webkit-keyframes" -> "keyframes".
func (a *AtRule) BaseName() string {
	name := a.Name
	if strings.HasPrefix(name, "-") {
		if i := strings.IndexByte(name[1:], '-'); i >= 0 {
			return name[i+2:]
		}
	}
	return name
}

// Node is a single item of a stylesheet or of an at-rule block.
// Exactly one of Rule or AtRule is non-nil.
type Node struct {
	Rule   *Rule
	AtRule *AtRule
}

// Stylesheet represents a parsed CSS stylesheet.
type Stylesheet struct {
	Nodes    []Node   // All top-level nodes in source order
	Warnings []string // Problems encountered while parsing
}

// Declarations returns declarations carried by the node, if any.
func (n Node) Declarations() []Declaration {
	switch {
	case n.Rule != nil:
		return n.Rule.Declarations
	case n.AtRule != nil && n.AtRule.Block == BlockDeclarations:
		return n.AtRule.Declarations
	}
	return nil
}

// Walk calls fn for every node in source order, descending into rule blocks.
// Returning false from fn skips node's children.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}
		if n.AtRule != nil && n.AtRule.Block == BlockRules {
			Walk(n.AtRule.Rules, fn)
		}
	}
}

// AllDeclarations calls fn for every declaration in the tree.
func AllDeclarations(nodes []Node, fn func(Declaration)) {
	Walk(nodes, func(n Node) bool {
		for _, d := range n.Declarations() {
			fn(d)
		}
		return true
	})
}

// Clone returns a deep copy of the nodes.
func Clone(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		switch {
		case n.Rule != nil:
			r := *n.Rule
			r.Selectors = append([]string(nil), n.Rule.Selectors...)
			r.Declarations = append([]Declaration(nil), n.Rule.Declarations...)
			out[i] = Node{Rule: &r}
		case n.AtRule != nil:
			a := *n.AtRule
			a.Declarations = append([]Declaration(nil), n.AtRule.Declarations...)
			a.Rules = Clone(n.AtRule.Rules)
			out[i] = Node{AtRule: &a}
		}
	}
	return out
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// Unquote removes surrounding quotes from CSS string value.
func Unquote(s string) string {
	return unquote(s)
}

// SplitList splits a comma separated list ignoring commas inside parenthesis,
// brackets and quoted strings. Empty entries are dropped.
func SplitList(s string) []string {
	var (
		out   []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '\\':
			i++
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			if part := strings.TrimSpace(s[start:i]); part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	if start <= len(s) {
		if part := strings.TrimSpace(s[start:]); part != "" {
			out = append(out, part)
		}
	}
	return out
}
