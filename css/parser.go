package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// After that many parse errors in a row without any progress rest of the input is abandoned.
const maxSequentialErrors = 64

// Parser parses CSS stylesheets into structured rules.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// parseState is what single Parse call needs to carry around.
type parseState struct {
	p      *css.Parser
	data   []byte
	sheet  *Stylesheet
	log    *zap.Logger
	errors int
	eof    bool
	// source span of the last grammar unit including leading trivia
	start, end int
}

// block accumulates content of a stylesheet or an at-rule block.
type block struct {
	nodes     []Node
	decls     []Declaration
	verbatim  bytes.Buffer
	hasTokens bool
}

// Parse parses CSS text into a Stylesheet. Malformed constructs are skipped
// and reported in Stylesheet.Warnings, parsing never fails.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{
		Nodes:    make([]Node, 0),
		Warnings: make([]string, 0),
	}

	// Log parsing start with source identifier if provided
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return sheet
	}

	st := &parseState{
		p:     css.NewParser(parse.NewInput(bytes.NewReader(data)), false),
		data:  data,
		sheet: sheet,
		log:   p.log,
	}
	top := st.parseBlock(false)
	sheet.Nodes = append(sheet.Nodes, top.nodes...)

	if len(top.decls) > 0 {
		st.warn("declarations outside of any rule ignored", zap.Int("count", len(top.decls)))
	}

	p.log.Debug("Parsed CSS", zap.Int("nodes", len(sheet.Nodes)), zap.Int("warnings", len(sheet.Warnings)))
	return sheet
}

func (st *parseState) warn(msg string, fields ...zap.Field) {
	st.sheet.Warnings = append(st.sheet.Warnings, msg)
	st.log.Debug(msg, fields...)
}

// next returns next grammar unit skipping over recoverable errors, false is
// returned when input is exhausted.
func (st *parseState) next() (css.GrammarType, []byte, bool) {
	for !st.eof {
		st.start = st.p.Offset()
		gt, _, data := st.p.Next()
		st.end = st.p.Offset()
		if gt != css.ErrorGrammar {
			st.errors = 0
			return gt, data, true
		}
		err := st.p.Err()
		if err == nil || errors.Is(err, io.EOF) {
			st.eof = true
			break
		}
		st.errors++
		st.warn("CSS parse error: "+err.Error(), zap.Error(err))
		if st.errors > maxSequentialErrors {
			st.warn("too many parse errors, giving up on the rest of the stylesheet")
			st.eof = true
		}
	}
	return css.ErrorGrammar, nil, false
}

// statementText returns source of the statement at-rule just read, without
// leading trivia and terminating semicolon. Empty string is returned when
// span does not look like an at-rule.
func (st *parseState) statementText() string {
	end := min(st.end, len(st.data))
	text := skipTrivia(st.data[min(st.start, end):end])
	if len(text) == 0 || text[0] != '@' {
		return ""
	}
	switch {
	case bytes.HasSuffix(text, []byte(";")):
		text = text[:len(text)-1]
	case bytes.HasSuffix(text, []byte("}")):
		// closing brace of enclosing block ended the statement
		text = bytes.TrimRight(text[:len(text)-1], " \t\r\n\f")
	default:
		text = bytes.TrimRight(text, " \t\r\n\f")
	}
	return string(text)
}

// skipTrivia removes leading whitespace and comments.
func skipTrivia(b []byte) []byte {
	for {
		b = bytes.TrimLeft(b, " \t\r\n\f")
		if !bytes.HasPrefix(b, []byte("/*")) {
			return b
		}
		end := bytes.Index(b[2:], []byte("*/"))
		if end < 0 {
			return nil
		}
		b = b[end+4:]
	}
}

// parseBlock reads nodes until the end of the enclosing at-rule block (when
// nested) or the end of input.
func (st *parseState) parseBlock(nested bool) *block {
	b := &block{}
	var pending []string

	for {
		gt, data, ok := st.next()
		if !ok {
			if nested {
				st.warn("unexpected end of input inside at-rule block")
			}
			return b
		}

		switch gt {
		case css.CommentGrammar:
			// dropped

		case css.AtRuleGrammar:
			b.nodes = append(b.nodes, Node{AtRule: &AtRule{
				Name:    atRuleName(data),
				Prelude: joinTokens(st.p.Values()),
				Block:   BlockNone,
				Raw:     st.statementText(),
			}})

		case css.BeginAtRuleGrammar:
			rule := &AtRule{
				Name:    atRuleName(data),
				Prelude: joinTokens(st.p.Values()),
			}
			inner := st.parseBlock(true)
			switch {
			case declarationBlocks[rule.BaseName()]:
				rule.Block = BlockDeclarations
				rule.Declarations = inner.decls
			case ruleBlocks[rule.BaseName()]:
				rule.Block = BlockRules
				rule.Rules = inner.nodes
			case inner.hasTokens:
				rule.Block = BlockVerbatim
				rule.Verbatim = strings.TrimSpace(inner.verbatim.String())
			case len(inner.nodes) > 0:
				rule.Block = BlockRules
				rule.Rules = inner.nodes
			case len(inner.decls) > 0:
				rule.Block = BlockDeclarations
				rule.Declarations = inner.decls
			default:
				rule.Block = BlockVerbatim
			}
			b.nodes = append(b.nodes, Node{AtRule: rule})

		case css.EndAtRuleGrammar:
			if nested {
				return b
			}
			st.warn("unbalanced at-rule end ignored")

		case css.QualifiedRuleGrammar:
			// one of comma separated selectors, the last one comes with BeginRulesetGrammar
			pending = append(pending, splitSelectors(data, st.p.Values())...)

		case css.BeginRulesetGrammar:
			selectors := append(pending, splitSelectors(data, st.p.Values())...)
			pending = nil
			decls := st.parseDeclarations()
			if len(selectors) == 0 {
				st.warn("rule without selectors ignored")
				continue
			}
			b.nodes = append(b.nodes, Node{Rule: &Rule{Selectors: selectors, Declarations: decls}})

		case css.EndRulesetGrammar:
			st.warn("unbalanced rule end ignored")

		case css.DeclarationGrammar:
			b.decls = append(b.decls, declaration(data, st.p.Values()))

		case css.CustomPropertyGrammar:
			b.decls = append(b.decls, customProperty(data, st.p.Values()))

		case css.TokenGrammar:
			b.hasTokens = true
			b.verbatim.Write(data)
		}
	}
}

// parseDeclarations parses property declarations until EndRulesetGrammar.
func (st *parseState) parseDeclarations() []Declaration {
	decls := make([]Declaration, 0)
	for {
		gt, data, ok := st.next()
		if !ok {
			return decls
		}
		switch gt {
		case css.EndRulesetGrammar:
			return decls
		case css.DeclarationGrammar:
			decls = append(decls, declaration(data, st.p.Values()))
		case css.CustomPropertyGrammar:
			decls = append(decls, customProperty(data, st.p.Values()))
		case css.BeginRulesetGrammar, css.BeginAtRuleGrammar:
			// nested rules are not supported, skip them with their content
			st.warn("nested rule inside declaration block ignored")
			st.skipBlock()
		}
	}
}

// skipBlock skips tokens until the matching end of a block.
func (st *parseState) skipBlock() {
	depth := 1
	for depth > 0 {
		gt, _, ok := st.next()
		if !ok {
			return
		}
		switch gt {
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

func atRuleName(data []byte) string {
	return strings.ToLower(strings.TrimPrefix(string(data), "@"))
}

// splitSelectors builds selector text from token data and splits grouped selectors.
func splitSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	sb.WriteString(joinTokens(values))
	return SplitList(sb.String())
}

// declaration converts DeclarationGrammar unit into Declaration.
func declaration(name []byte, values []css.Token) Declaration {
	d := Declaration{Property: strings.ToLower(string(name))}
	values = trimWhitespace(values)

	// "!important" arrives as delimiter followed by identifier
	if n := len(values); n >= 2 && values[n-1].TokenType == css.IdentToken && strings.EqualFold(string(values[n-1].Data), "important") {
		rest := trimWhitespace(values[:n-1])
		if m := len(rest); m > 0 && rest[m-1].TokenType == css.DelimToken && string(rest[m-1].Data) == "!" {
			d.Important = true
			values = trimWhitespace(rest[:m-1])
		}
	}
	d.Value = joinTokens(values)
	return d
}

func customProperty(name []byte, values []css.Token) Declaration {
	var sb strings.Builder
	for _, t := range values {
		sb.Write(t.Data)
	}
	return Declaration{Property: string(name), Value: strings.TrimSpace(sb.String())}
}

func trimWhitespace(tokens []css.Token) []css.Token {
	for len(tokens) > 0 && tokens[len(tokens)-1].TokenType == css.WhitespaceToken {
		tokens = tokens[:len(tokens)-1]
	}
	for len(tokens) > 0 && tokens[0].TokenType == css.WhitespaceToken {
		tokens = tokens[1:]
	}
	return tokens
}

// joinTokens rebuilds text from tokens collapsing whitespace runs into a single space.
func joinTokens(tokens []css.Token) string {
	var sb strings.Builder
	space := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken || t.TokenType == css.CommentToken {
			space = sb.Len() > 0
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.Write(t.Data)
	}
	return sb.String()
}
