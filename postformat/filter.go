// Package postformat cleans up stylesheet after critical selection: it
// strips unwanted declarations and drops rules nothing refers to anymore.
// All transforms only remove, order of what is left is never changed.
package postformat

import (
	"slices"

	"critcss/css"
)

// filter rebuilds node tree removing declarations and nodes. Rules and
// blocks left empty are removed together with their parents.
type filter struct {
	// keepDecl is consulted for every declaration, nil keeps all
	keepDecl func(d css.Declaration) bool
	// keepNode is consulted before looking inside a node, nil keeps all
	keepNode func(n css.Node) bool
}

func (f filter) apply(nodes []css.Node) []css.Node {
	out := make([]css.Node, 0, len(nodes))
	for _, n := range nodes {
		if f.keepNode != nil && !f.keepNode(n) {
			continue
		}
		switch {
		case n.Rule != nil:
			decls := f.declarations(n.Rule.Declarations)
			if len(decls) == 0 {
				continue
			}
			out = append(out, css.Node{Rule: &css.Rule{
				Selectors:    slices.Clone(n.Rule.Selectors),
				Declarations: decls,
			}})
		case n.AtRule != nil:
			at := *n.AtRule
			switch at.Block {
			case css.BlockDeclarations:
				if at.Declarations = f.declarations(at.Declarations); len(at.Declarations) == 0 {
					continue
				}
			case css.BlockRules:
				if at.Rules = f.apply(at.Rules); len(at.Rules) == 0 {
					continue
				}
			}
			out = append(out, css.Node{AtRule: &at})
		}
	}
	return out
}

func (f filter) declarations(decls []css.Declaration) []css.Declaration {
	out := make([]css.Declaration, 0, len(decls))
	for _, d := range decls {
		if f.keepDecl == nil || f.keepDecl(d) {
			out = append(out, d)
		}
	}
	return out
}

// outside calls fn for all declarations except ones in at-rules for which
// skip returns true.
func outside(nodes []css.Node, skip func(at *css.AtRule) bool, fn func(d css.Declaration)) {
	for _, n := range nodes {
		switch {
		case n.Rule != nil:
			for _, d := range n.Rule.Declarations {
				fn(d)
			}
		case n.AtRule != nil:
			if skip(n.AtRule) {
				continue
			}
			for _, d := range n.AtRule.Declarations {
				fn(d)
			}
			outside(n.AtRule.Rules, skip, fn)
		}
	}
}
