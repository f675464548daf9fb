package css_test

import (
	"errors"
	"strings"
	"testing"

	"critcss/css"
)

func TestSerialize_RoundTrip(t *testing.T) {
	input := `@import url("a.css");
body, html { margin: 0; color: red !important; }
@media screen and (min-width: 10px) { .a > b { display: none } }
@font-face { font-family: "Foo"; src: url(foo.woff2) format("woff2") }
@keyframes spin { from { opacity: 0 } to { opacity: 1 } }
`
	first := parse(t, input)
	text, err := css.Serialize(first.Nodes)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	// second generation must be identical to the first one
	second := parse(t, text)
	again, err := css.Serialize(second.Nodes)
	if err != nil {
		t.Fatalf("Serialize() second pass error = %v", err)
	}
	if text != again {
		t.Errorf("round trip is not stable:\n%s\n---\n%s", text, again)
	}

	for _, want := range []string{"body, html {", "color: red !important;", "@media screen and", ".a>b {", "@keyframes spin {", `@import url("a.css");`} {
		if !strings.Contains(text, want) {
			t.Errorf("expected output to contain %q:\n%s", want, text)
		}
	}
}

func TestSerialize_StatementsVerbatim(t *testing.T) {
	statements := []string{
		`@import url("a.css") screen and (min-width: 100px);`,
		`@import 'b.css' print, screen;`,
		`@charset "UTF-8";`,
		`@namespace svg url(http://www.w3.org/2000/svg);`,
		`@IMPORT   "c.css"  ;`,
	}
	sheet := parse(t, "/* leading */ "+strings.Join(statements, "\n\n")+"\na { color: red }")
	text, err := css.Serialize(sheet.Nodes)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	lines := strings.Split(text, "\n")
	if len(lines) < len(statements) {
		t.Fatalf("unexpected output:\n%s", text)
	}
	for i, want := range statements {
		if lines[i] != want {
			t.Errorf("statement %d: expected %q, got %q", i, want, lines[i])
		}
	}
}

func TestSerialize_StatementInsideBlock(t *testing.T) {
	sheet := parse(t, `@media print { @import "p.css" screen, print }`)
	text, err := css.Serialize(sheet.Nodes)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if !strings.Contains(text, "  @import \"p.css\" screen, print;\n}") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

func TestSerialize_Empty(t *testing.T) {
	text, err := css.Serialize(nil)
	if err != nil || text != "" {
		t.Errorf("Serialize(nil) = %q, %v", text, err)
	}
}

func TestSerialize_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		nodes []css.Node
	}{
		{"empty node", []css.Node{{}}},
		{"rule without selectors", []css.Node{{Rule: &css.Rule{}}}},
		{"empty property", []css.Node{{Rule: &css.Rule{Selectors: []string{"a"}, Declarations: []css.Declaration{{Value: "x"}}}}}},
		{"nameless at-rule", []css.Node{{AtRule: &css.AtRule{}}}},
		{"nested", []css.Node{{AtRule: &css.AtRule{Name: "media", Block: css.BlockRules, Rules: []css.Node{{}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := css.Serialize(tt.nodes); !errors.Is(err, css.ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestStylesheet_String(t *testing.T) {
	sheet := parse(t, `a{color:red}`)
	if got := sheet.String(); got != "a {\n  color: red;\n}\n" {
		t.Errorf("unexpected text %q", got)
	}
}
