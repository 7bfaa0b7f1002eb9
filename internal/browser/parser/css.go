// internal/browser/parser/css.go
package parser

import (
	"fmt"
	"strings"
)

// Property represents a CSS property (e.g., "display").
type Property string

// Value represents a CSS value (e.g., "none").
type Value string

// Declaration is a key-value pair (e.g., display: none).
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// Rule is a selector list with the declarations it applies.
type Rule struct {
	Selectors    SelectorList
	Declarations []Declaration
}

// StyleSheet is a parsed stylesheet. At-rules are skipped.
type StyleSheet struct {
	Rules []Rule
}

// SelectorList is a comma-separated list of complex selectors.
type SelectorList []ComplexSelector

// ComplexSelector is a chain of compound selectors joined by combinators,
// stored left to right. Parts[0].Combinator is always CombinatorNone.
type ComplexSelector struct {
	Parts []Part
}

// Part pairs a compound selector with the combinator that precedes it.
type Part struct {
	Combinator Combinator
	Compound   Compound
}

// Compound is a sequence of simple selectors without combinators (div#id.a[b]:not(.c)).
type Compound struct {
	Tag        string
	ID         string
	Classes    []string
	Attributes []AttributeSelector
	Not        []Compound
}

// AttributeSelector represents `[name]` or `[name op "value"]`.
type AttributeSelector struct {
	Name     string
	Operator string // "", "=", "~=", "|=", "^=", "$=", "*="
	Value    string
}

// Combinator defines the relationship between compound selectors.
type Combinator int

const (
	CombinatorNone Combinator = iota
	CombinatorDescendant
	CombinatorChild
	CombinatorAdjacentSibling
	CombinatorGeneralSibling
)

// Specificity is the (ids, classes, types) triple.
type Specificity [3]int

// Less reports whether s sorts before o in the cascade.
func (s Specificity) Less(o Specificity) bool {
	for i := range s {
		if s[i] != o[i] {
			return s[i] < o[i]
		}
	}
	return false
}

// Specificity sums the specificity of every compound in the chain.
func (cs ComplexSelector) Specificity() Specificity {
	var total Specificity
	for _, p := range cs.Parts {
		s := p.Compound.specificity()
		total[0] += s[0]
		total[1] += s[1]
		total[2] += s[2]
	}
	return total
}

func (c Compound) specificity() Specificity {
	var s Specificity
	if c.ID != "" {
		s[0] = 1
	}
	s[1] = len(c.Classes) + len(c.Attributes)
	if c.Tag != "" && c.Tag != "*" {
		s[2] = 1
	}
	// :not() contributes the specificity of its argument.
	for _, n := range c.Not {
		ns := n.specificity()
		s[0] += ns[0]
		s[1] += ns[1]
		s[2] += ns[2]
	}
	return s
}

func (c Compound) empty() bool {
	return c.Tag == "" && c.ID == "" && len(c.Classes) == 0 && len(c.Attributes) == 0 && len(c.Not) == 0
}

// Parser holds the state of the CSS parser.
type Parser struct {
	input string
	pos   int
}

func NewParser(input string) *Parser {
	return &Parser{input: input}
}

// ParseStyleSheet parses a stylesheet leniently: malformed rules and rules with
// unsupported selectors are dropped, never reported.
func ParseStyleSheet(src string) StyleSheet {
	return NewParser(src).Parse()
}

// ParseSelector parses a selector list strictly. It is used for configured
// selectors, where a typo should surface as an error.
func ParseSelector(src string) (SelectorList, error) {
	p := NewParser(src)
	list, err := p.parseSelectorList()
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", src, err)
	}
	p.consumeWhitespace()
	if !p.eof() {
		return nil, fmt.Errorf("invalid selector %q: unexpected %q at offset %d", src, p.currentChar(), p.pos)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("invalid selector %q: empty", src)
	}
	return list, nil
}

// ParseDeclarations parses the body of a declaration block, as found in a style attribute.
func ParseDeclarations(src string) []Declaration {
	p := NewParser(src)
	var decls []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() {
			return decls
		}
		if p.currentChar() == '}' {
			p.consumeChar()
			continue
		}
		if d, ok := p.parseDeclaration(); ok {
			decls = append(decls, d)
		}
	}
}

// Parse analyzes the input CSS string and builds a StyleSheet.
func (p *Parser) Parse() StyleSheet {
	var sheet StyleSheet
	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == '@' {
			p.skipAtRule()
			continue
		}

		selectors, err := p.parseSelectorList()
		p.consumeWhitespace()
		if err != nil || p.eof() || p.currentChar() != '{' {
			// Resynchronize at the next block.
			p.skipTo('{')
			if !p.eof() {
				p.consumeChar()
				p.skipBlock('{', '}')
			}
			continue
		}

		decls := p.parseBlock()
		if len(selectors) > 0 && len(decls) > 0 {
			sheet.Rules = append(sheet.Rules, Rule{Selectors: selectors, Declarations: decls})
		}
	}
	return sheet
}

func (p *Parser) parseSelectorList() (SelectorList, error) {
	var list SelectorList
	for {
		p.consumeWhitespace()
		complex, err := p.parseComplexSelector()
		if err != nil {
			return nil, err
		}
		if len(complex.Parts) == 0 {
			return nil, fmt.Errorf("empty selector at offset %d", p.pos)
		}
		list = append(list, complex)

		p.consumeWhitespace()
		if p.eof() || p.currentChar() != ',' {
			return list, nil
		}
		p.consumeChar()
	}
}

func (p *Parser) parseComplexSelector() (ComplexSelector, error) {
	var cs ComplexSelector
	combinator := CombinatorNone

	for {
		compound, err := p.parseCompound()
		if err != nil {
			return cs, err
		}
		if compound.empty() {
			if combinator != CombinatorNone && combinator != CombinatorDescendant {
				return cs, fmt.Errorf("dangling combinator at offset %d", p.pos)
			}
			return cs, nil
		}
		cs.Parts = append(cs.Parts, Part{Combinator: combinator, Compound: compound})

		sawSpace := p.consumeWhitespace()
		if p.eof() {
			return cs, nil
		}
		switch p.currentChar() {
		case '>':
			combinator = CombinatorChild
			p.consumeChar()
			p.consumeWhitespace()
		case '+':
			combinator = CombinatorAdjacentSibling
			p.consumeChar()
			p.consumeWhitespace()
		case '~':
			combinator = CombinatorGeneralSibling
			p.consumeChar()
			p.consumeWhitespace()
		case ',', '{', ')':
			return cs, nil
		default:
			if !sawSpace {
				return cs, fmt.Errorf("unexpected %q at offset %d", p.currentChar(), p.pos)
			}
			combinator = CombinatorDescendant
		}
	}
}

func (p *Parser) parseCompound() (Compound, error) {
	var c Compound

	if !p.eof() {
		if ch := p.currentChar(); ch == '*' {
			p.consumeChar()
			c.Tag = "*"
		} else if isValidIdentifierStart(ch) {
			c.Tag = strings.ToLower(p.parseIdentifier())
		}
	}

	for !p.eof() {
		switch p.currentChar() {
		case '#':
			p.consumeChar()
			id := p.parseIdentifier()
			if id == "" {
				return c, fmt.Errorf("empty id selector at offset %d", p.pos)
			}
			c.ID = id
		case '.':
			p.consumeChar()
			class := p.parseIdentifier()
			if class == "" {
				return c, fmt.Errorf("empty class selector at offset %d", p.pos)
			}
			c.Classes = append(c.Classes, class)
		case '[':
			p.consumeChar()
			attr, err := p.parseAttributeSelector()
			if err != nil {
				return c, err
			}
			c.Attributes = append(c.Attributes, attr)
		case ':':
			p.consumeChar()
			name := strings.ToLower(p.parseIdentifier())
			if name != "not" || p.currentChar() != '(' {
				return c, fmt.Errorf("unsupported pseudo-class %q", name)
			}
			p.consumeChar()
			p.consumeWhitespace()
			inner, err := p.parseCompound()
			if err != nil {
				return c, err
			}
			p.consumeWhitespace()
			if p.currentChar() != ')' || inner.empty() {
				return c, fmt.Errorf("malformed :not() at offset %d", p.pos)
			}
			p.consumeChar()
			c.Not = append(c.Not, inner)
		default:
			return c, nil
		}
	}
	return c, nil
}

// parseAttributeSelector parses the contents of `[...]`; the '[' is already consumed.
func (p *Parser) parseAttributeSelector() (AttributeSelector, error) {
	p.consumeWhitespace()
	name := strings.ToLower(p.parseIdentifier())
	p.consumeWhitespace()
	if name == "" || p.eof() {
		return AttributeSelector{}, fmt.Errorf("malformed attribute selector at offset %d", p.pos)
	}

	if p.currentChar() == ']' {
		p.consumeChar()
		return AttributeSelector{Name: name}, nil
	}

	var op string
	switch ch := p.currentChar(); ch {
	case '=':
		op = "="
		p.consumeChar()
	case '~', '|', '^', '$', '*':
		p.consumeChar()
		if p.currentChar() != '=' {
			return AttributeSelector{}, fmt.Errorf("malformed attribute operator at offset %d", p.pos)
		}
		p.consumeChar()
		op = string(ch) + "="
	default:
		return AttributeSelector{}, fmt.Errorf("unexpected %q in attribute selector", ch)
	}
	p.consumeWhitespace()

	var value string
	if ch := p.currentChar(); ch == '"' || ch == '\'' {
		p.consumeChar()
		start := p.pos
		for !p.eof() && p.currentChar() != ch {
			p.pos++
		}
		value = p.input[start:p.pos]
		if p.eof() {
			return AttributeSelector{}, fmt.Errorf("unterminated string in attribute selector")
		}
		p.consumeChar()
	} else {
		value = p.parseIdentifier()
	}
	p.consumeWhitespace()

	if p.currentChar() != ']' {
		return AttributeSelector{}, fmt.Errorf("expected ']' at offset %d", p.pos)
	}
	p.consumeChar()
	return AttributeSelector{Name: name, Operator: op, Value: value}, nil
}

// parseBlock parses `{ decl; decl }` starting at the opening brace.
func (p *Parser) parseBlock() []Declaration {
	p.consumeChar() // '{'
	var decls []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() {
			return decls
		}
		if p.currentChar() == '}' {
			p.consumeChar()
			return decls
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if d, ok := p.parseDeclaration(); ok {
			decls = append(decls, d)
		}
	}
}

// parseDeclaration parses a single 'property: value;' pair. Malformed input is
// skipped up to the next ';' or '}'.
func (p *Parser) parseDeclaration() (Declaration, bool) {
	if !isValidIdentifierStart(p.currentChar()) {
		p.skipDeclaration()
		return Declaration{}, false
	}
	prop := strings.ToLower(p.parseIdentifier())
	p.consumeWhitespace()
	if p.currentChar() != ':' {
		p.skipDeclaration()
		return Declaration{}, false
	}
	p.consumeChar()
	p.consumeWhitespace()

	val := p.parseValue()
	important := false
	if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
	if val == "" {
		return Declaration{}, false
	}
	return Declaration{Property: Property(prop), Value: Value(val), Important: important}, true
}

func (p *Parser) skipDeclaration() {
	p.skipTo(';', '}')
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
}

// parseValue reads a CSS value until a delimiter.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if ch == ';' || ch == '}' {
			break
		}
		if ch == '"' || ch == '\'' {
			p.skipQuotedString(ch)
			continue
		}
		if ch == '(' {
			p.consumeChar()
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

// --- Lexer-like Helpers ---

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

// consumeWhitespace skips whitespace and comments and reports whether anything was skipped.
func (p *Parser) consumeWhitespace() bool {
	start := p.pos
	for !p.eof() {
		if isWhitespace(p.currentChar()) {
			p.pos++
			continue
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		break
	}
	return p.pos > start
}

func (p *Parser) startsWith(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) skipComment() {
	p.pos += 2
	if end := strings.Index(p.input[p.pos:], "*/"); end == -1 {
		p.pos = len(p.input)
	} else {
		p.pos += end + 2
	}
}

func (p *Parser) skipTo(targets ...byte) {
	for !p.eof() {
		ch := p.currentChar()
		for _, target := range targets {
			if ch == target {
				return
			}
		}
		p.pos++
	}
}

// skipBlock skips to the matching close byte; the opening byte is already consumed.
func (p *Parser) skipBlock(open, close byte) {
	depth := 1
	for !p.eof() {
		switch p.consumeChar() {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuotedString(quote byte) {
	p.consumeChar()
	for !p.eof() {
		ch := p.consumeChar()
		if ch == '\\' {
			p.consumeChar()
		} else if ch == quote {
			return
		}
	}
}

func (p *Parser) skipAtRule() {
	p.consumeChar() // '@'
	for !p.eof() {
		switch p.currentChar() {
		case '{':
			p.consumeChar()
			p.skipBlock('{', '}')
			return
		case ';':
			p.consumeChar()
			return
		}
		p.pos++
	}
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isValidIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}
