package postformat_test

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"critcss/css"
	"critcss/postformat"
)

func parse(t *testing.T, input string) []css.Node {
	t.Helper()
	return css.NewParser(zaptest.NewLogger(t)).Parse([]byte(input)).Nodes
}

func text(t *testing.T, nodes []css.Node) string {
	t.Helper()
	s, err := css.Serialize(nodes)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	return s
}

func TestRemoveProperties(t *testing.T) {
	nodes := parse(t, `a {
	color: red;
	transition: all 1s;
	-webkit-transition-delay: 1s;
	CURSOR: pointer;
	pointer-events: none;
	-webkit-tap-highlight-color: red;
	-moz-user-select: none;
}
.only-cursor { cursor: pointer }
@media screen { .x { user-select: none } }
@font-face { font-family: Foo; src: url(foo.woff) }`)

	patterns, err := postformat.CompilePatterns(postformat.DefaultPropertiesToRemove)
	if err != nil {
		t.Fatalf("CompilePatterns() error = %v", err)
	}
	got := text(t, postformat.RemoveProperties(nodes, patterns))

	want := "a {\n  color: red;\n}\n@font-face {\n  font-family: Foo;\n  src: url(foo.woff);\n}\n"
	if got != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompilePatterns_Bad(t *testing.T) {
	if _, err := postformat.CompilePatterns([]string{"("}); err == nil {
		t.Error("expected error for bad pattern")
	}
}

func TestRemoveEmbeddedData_Threshold(t *testing.T) {
	const limit = 10
	exact := strings.Repeat("A", limit)
	over := strings.Repeat("A", limit+1)

	input := fmt.Sprintf(`.exact { background: url("data:image/png;base64,%s") }
.over { background: url(data:image/svg+xml;charset=utf-8;base64,%s); color: red }
.only-over { background-image: url('data:image/png;base64,%s') }
.plain { background: url(data:image/svg+xml,%%3Csvg%%3E) }`, exact, over, over)

	got := text(t, postformat.RemoveEmbeddedData(parse(t, input), limit))

	if !strings.Contains(got, exact+`")`) {
		t.Errorf("payload of exactly %d characters was removed:\n%s", limit, got)
	}
	if strings.Contains(got, over) {
		t.Errorf("payload over the limit was kept:\n%s", got)
	}
	if !strings.Contains(got, ".over {\n  color: red;\n}") {
		t.Errorf("other declarations of the rule were lost:\n%s", got)
	}
	if strings.Contains(got, ".only-over") {
		t.Errorf("rule left empty was kept:\n%s", got)
	}
	if !strings.Contains(got, ".plain") {
		t.Errorf("non base64 data was removed:\n%s", got)
	}
}

func TestRemoveEmbeddedData_Disabled(t *testing.T) {
	input := `.x { background: url(data:image/png;base64,` + strings.Repeat("A", 5000) + `) }`
	if got := text(t, postformat.RemoveEmbeddedData(parse(t, input), -1)); !strings.Contains(got, ".x") {
		t.Errorf("negative limit must keep everything, got %q", got)
	}
}

func TestRemoveUnusedFontFaces(t *testing.T) {
	nodes := parse(t, `@font-face { font-family: "Used Font"; src: url(a.woff) }
@font-face { font-family: 'SHORTHAND'; src: url(b.woff) }
@font-face { font-family: Unused; src: url(c.woff) }
@font-face { src: url(d.woff) }
@font-face { font-family: ViaVar; src: url(e.woff) }
@media screen { @font-face { font-family: Unused2; src: url(f.woff) } }
p { font-family: used font, serif }
h1 { font: italic bold 12px/30px Shorthand, sans-serif }
:root { --heading-font: "ViaVar" }
h2 { font-family: var(--heading-font) }`)

	got := text(t, postformat.RemoveUnusedFontFaces(nodes))

	for _, want := range []string{`"Used Font"`, `'SHORTHAND'`, "ViaVar;"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s to be kept:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"Unused", "d.woff", "@media"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("unexpected %s in output:\n%s", unwanted, got)
		}
	}
}

func TestRemoveUnusedKeyframes(t *testing.T) {
	nodes := parse(t, `@keyframes spin { to { opacity: 1 } }
@-webkit-keyframes spin { to { opacity: 1 } }
@keyframes fade { to { opacity: 0 } }
@keyframes pulse { to { opacity: 0 } }
@keyframes orphan { to { animation-name: pulse } }
.a { animation: spin 1s infinite linear }
.b { -webkit-animation-name: fade }`)

	got := text(t, postformat.RemoveUnusedKeyframes(nodes))

	if strings.Count(got, "spin {") != 2 || !strings.Contains(got, "@keyframes fade") {
		t.Errorf("referenced keyframes were removed:\n%s", got)
	}
	if strings.Contains(got, "@keyframes pulse") || strings.Contains(got, "orphan") {
		t.Errorf("unreferenced keyframes were kept:\n%s", got)
	}
}

func TestApply_ReferencesRemovedByStripping(t *testing.T) {
	nodes := parse(t, `@font-face { font-family: Stripped; src: url(a.woff) }
@font-face { font-family: Kept; src: url(b.woff) }
@keyframes gone { to { opacity: 1 } }
.a { transition: font-family 1s Stripped }
.b { font-family: Kept }
.c { -webkit-transition: gone; cursor: pointer }
.d { -moz-transition-property: animation; animation-name: gone }`)

	// font family referenced only from a removed declaration goes away
	out, err := postformat.Apply(nodes, postformat.Options{
		PropertiesToRemove:      append([]string{"animation-name"}, postformat.DefaultPropertiesToRemove...),
		MaxEmbeddedBase64Length: postformat.DefaultMaxEmbeddedBase64Length,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := text(t, out)
	if strings.Contains(got, "Stripped") || strings.Contains(got, "gone") {
		t.Errorf("unreferenced rules left:\n%s", got)
	}
	if !strings.Contains(got, "font-family: Kept;") || !strings.Contains(got, ".b {") {
		t.Errorf("referenced @font-face removed:\n%s", got)
	}
}

func TestApply_Idempotent(t *testing.T) {
	inputs := []string{
		`a { color: red; transition: none } @font-face { font-family: X } b { font-family: X; cursor: auto }`,
		`@media screen { @keyframes k { to { color: red } } a { animation: k 1s } } @keyframes k2 { }`,
		`.x { background: url(data:image/png;base64,` + strings.Repeat("B", 2000) + `) } .y {} @import "a.css";`,
		``,
	}
	for i, input := range inputs {
		first, err := postformat.Apply(parse(t, input), postformat.DefaultOptions(), nil)
		if err != nil {
			t.Fatalf("input %d: Apply() error = %v", i, err)
		}
		once := text(t, first)
		second, err := postformat.Apply(first, postformat.DefaultOptions(), nil)
		if err != nil {
			t.Fatalf("input %d: second Apply() error = %v", i, err)
		}
		if twice := text(t, second); once != twice {
			t.Errorf("input %d: not idempotent:\n%s\n---\n%s", i, once, twice)
		}
	}
}

func TestApply_BadPattern(t *testing.T) {
	if _, err := postformat.Apply(nil, postformat.Options{PropertiesToRemove: []string{"["}}, nil); err == nil {
		t.Error("expected error")
	}
}
