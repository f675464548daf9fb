package css

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is returned when a tree can not be written back as CSS text.
var ErrMalformed = errors.New("malformed stylesheet tree")

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := writeNodes(cw, s.Nodes, "")
	return cw.n, err
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

// Serialize returns CSS text for nodes, malformed nodes result in error
// wrapping ErrMalformed.
func Serialize(nodes []Node) (string, error) {
	var sb strings.Builder
	if err := writeNodes(&countingWriter{w: &sb}, nodes, ""); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) print(parts ...string) {
	for _, p := range parts {
		if c.err != nil {
			return
		}
		n, err := io.WriteString(c.w, p)
		c.n += int64(n)
		c.err = err
	}
}

func writeNodes(w *countingWriter, nodes []Node, indent string) error {
	for i, n := range nodes {
		switch {
		case n.Rule != nil && n.AtRule != nil:
			return fmt.Errorf("%w: node %d is both rule and at-rule", ErrMalformed, i)
		case n.Rule != nil:
			if err := writeRule(w, n.Rule, indent); err != nil {
				return err
			}
		case n.AtRule != nil:
			if err := writeAtRule(w, n.AtRule, indent); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: node %d is empty", ErrMalformed, i)
		}
		if w.err != nil {
			return w.err
		}
	}
	return nil
}

// writeRule writes a single CSS rule to w.
func writeRule(w *countingWriter, rule *Rule, indent string) error {
	if len(rule.Selectors) == 0 {
		return fmt.Errorf("%w: rule without selectors", ErrMalformed)
	}
	for _, sel := range rule.Selectors {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("%w: empty selector in rule", ErrMalformed)
		}
	}
	w.print(indent, strings.Join(rule.Selectors, ", "), " {\n")
	if err := writeDeclarations(w, rule.Declarations, indent+"  "); err != nil {
		return err
	}
	w.print(indent, "}\n")
	return w.err
}

// writeDeclarations writes property declarations in source order.
func writeDeclarations(w *countingWriter, decls []Declaration, indent string) error {
	for _, d := range decls {
		if d.Property == "" {
			return fmt.Errorf("%w: declaration without property", ErrMalformed)
		}
		w.print(indent, d.Property, ": ", d.Value)
		if d.Important {
			w.print(" !important")
		}
		w.print(";\n")
	}
	return w.err
}

func writeAtRule(w *countingWriter, rule *AtRule, indent string) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: at-rule without name", ErrMalformed)
	}
	if rule.Block == BlockNone && rule.Raw != "" {
		w.print(indent, rule.Raw, ";\n")
		return w.err
	}
	w.print(indent, "@", rule.Name)
	if rule.Prelude != "" {
		w.print(" ", rule.Prelude)
	}

	switch rule.Block {
	case BlockNone:
		w.print(";\n")
	case BlockDeclarations:
		w.print(" {\n")
		if err := writeDeclarations(w, rule.Declarations, indent+"  "); err != nil {
			return err
		}
		w.print(indent, "}\n")
	case BlockRules:
		w.print(" {\n")
		if err := writeNodes(w, rule.Rules, indent+"  "); err != nil {
			return err
		}
		w.print(indent, "}\n")
	case BlockVerbatim:
		if rule.Verbatim == "" {
			w.print(" {}\n")
		} else {
			w.print(" {", rule.Verbatim, "}\n")
		}
	default:
		return fmt.Errorf("%w: at-rule @%s has unknown block kind %d", ErrMalformed, rule.Name, rule.Block)
	}
	return w.err
}
