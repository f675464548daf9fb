package css

import (
	"fmt"
	"strconv"
	"strings"
)

// treeWriter produces indented text used for debug dumps.
type treeWriter struct {
	sb strings.Builder
}

func (tw *treeWriter) line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

func (tw *treeWriter) text(depth int, label, value string) {
	if value != "" {
		value = strconv.Quote(value)
	}
	tw.line(depth, "%s: %s", label, value)
}

// Dump returns human readable tree of the stylesheet with node classes,
// it is put into debug report.
func (s *Stylesheet) Dump() string {
	var tw treeWriter
	tw.line(0, "stylesheet (%d nodes)", len(s.Nodes))
	dumpNodes(&tw, s.Nodes, 1)
	if len(s.Warnings) > 0 {
		tw.line(0, "warnings (%d)", len(s.Warnings))
		for _, w := range s.Warnings {
			tw.text(1, "warning", w)
		}
	}
	return tw.sb.String()
}

func dumpNodes(tw *treeWriter, nodes []Node, depth int) {
	for _, n := range nodes {
		switch {
		case n.Rule != nil:
			tw.line(depth, "rule [%s]", Classify(n))
			for _, sel := range n.Rule.Selectors {
				tw.text(depth+1, "selector", sel)
			}
			dumpDeclarations(tw, n.Rule.Declarations, depth+1)
		case n.AtRule != nil:
			a := n.AtRule
			tw.line(depth, "@%s [%s]", a.Name, Classify(n))
			if a.Prelude != "" {
				tw.text(depth+1, "prelude", a.Prelude)
			}
			switch a.Block {
			case BlockDeclarations:
				dumpDeclarations(tw, a.Declarations, depth+1)
			case BlockRules:
				dumpNodes(tw, a.Rules, depth+1)
			case BlockVerbatim:
				tw.text(depth+1, "verbatim", a.Verbatim)
			}
		default:
			tw.line(depth, "<empty node>")
		}
	}
}

func dumpDeclarations(tw *treeWriter, decls []Declaration, depth int) {
	for _, d := range decls {
		if d.Important {
			tw.line(depth, "%s: %s !important", d.Property, d.Value)
			continue
		}
		tw.line(depth, "%s: %s", d.Property, d.Value)
	}
}
