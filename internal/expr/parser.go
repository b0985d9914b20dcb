package expr

import (
	"strconv"
	"strings"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Parse parses an expression string into an AST. Either a complete tree or
// an error is returned, never a partial tree.
//
//	expression  := disjunction
//	disjunction := conjunction { "or" conjunction }
//	conjunction := negation { "and" negation }
//	negation    := "not" negation | comparison
//	comparison  := operand [ operator operand | "is" ["not"] "null" ]
//	operand     := column | atomic | "(" expression ")"
//	column      := [ ("{" name "}" | name) "." ] ( "[" name "]" | name )
//	atomic      := number | "true" | "false" | "null" | string | placeholder
func Parse(input string) (Expression, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	e, err := p.parseDisjunction()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseColumn parses a single column reference such as "name",
// "u.name" or "{User}.[group]".
func ParseColumn(input string) (*Column, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	c, err := p.parseColumn()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return c, nil
}

type parser struct {
	toks  []token
	pos   int
	input string
}

func newParser(input string) (*parser, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks, input: input}, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) fail(expected string) error {
	t := p.peek()
	return &ParseError{Input: p.input, Offset: t.offset, Expected: expected, Actual: t.String()}
}

func (p *parser) expect(kind tokenKind, text string) error {
	if !p.peek().is(kind, text) {
		return p.fail(strconv.Quote(text))
	}
	p.advance()
	return nil
}

func (p *parser) expectEOF() error {
	if p.peek().kind != tokEOF {
		return p.fail(tokEOF.String())
	}
	return nil
}

// parseDisjunction: conjunction { "or" conjunction }
func (p *parser) parseDisjunction() (Expression, error) {
	left, err := p.parseConjunction()
	if err != nil {
		return nil, err
	}
	for p.peek().is(tokKeyword, "or") {
		p.advance()
		right, err := p.parseConjunction()
		if err != nil {
			return nil, err
		}
		left = &Infix{Left: left, Op: OpOr, Right: right}
	}
	return left, nil
}

// parseConjunction: negation { "and" negation }
func (p *parser) parseConjunction() (Expression, error) {
	left, err := p.parseNegation()
	if err != nil {
		return nil, err
	}
	for p.peek().is(tokKeyword, "and") {
		p.advance()
		right, err := p.parseNegation()
		if err != nil {
			return nil, err
		}
		left = &Infix{Left: left, Op: OpAnd, Right: right}
	}
	return left, nil
}

// parseNegation: "not" negation | comparison
func (p *parser) parseNegation() (Expression, error) {
	if p.peek().is(tokKeyword, "not") {
		p.advance()
		operand, err := p.parseNegation()
		if err != nil {
			return nil, err
		}
		return &Prefix{Op: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison: operand [ operator operand | "is" ["not"] "null" ]
func (p *parser) parseComparison() (Expression, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	switch {
	case t.kind == tokOperator, t.is(tokKeyword, "like"), t.is(tokKeyword, "in"):
		p.advance()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Infix{Left: left, Op: Operator(t.text), Right: right}, nil

	case t.is(tokKeyword, "is"):
		p.advance()
		op := OpIs
		if p.peek().is(tokKeyword, "not") {
			p.advance()
			op = OpIsNot
		}
		if err := p.expect(tokKeyword, "null"); err != nil {
			return nil, err
		}
		return &Infix{Left: left, Op: op, Right: Null()}, nil
	}
	return left, nil
}

// parseOperand: column | atomic | "(" expression ")"
func (p *parser) parseOperand() (Expression, error) {
	t := p.peek()
	switch {
	case t.is(tokPunct, "("):
		p.advance()
		e, err := p.parseDisjunction()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.kind == tokModel, t.kind == tokField, t.kind == tokName:
		return p.parseColumn()
	}
	return p.parseAtomic()
}

// parseColumn: [ ("{" name "}" | name) "." ] ( "[" name "]" | name )
//
// A bare name is a table qualifier only when a "." follows it.
func (p *parser) parseColumn() (*Column, error) {
	t := p.peek()
	switch t.kind {
	case tokModel:
		p.advance()
		if err := p.expect(tokPunct, "."); err != nil {
			return nil, err
		}
		name, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		return &Column{Table: unwrap(t.text), Model: true, Name: name}, nil

	case tokField:
		p.advance()
		return &Column{Name: unwrap(t.text)}, nil

	case tokName:
		p.advance()
		if !p.peek().is(tokPunct, ".") {
			return &Column{Name: t.text}, nil
		}
		p.advance()
		name, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		return &Column{Table: t.text, Name: name}, nil
	}
	return nil, p.fail("column")
}

func (p *parser) parseFieldName() (string, error) {
	t := p.peek()
	switch t.kind {
	case tokField:
		p.advance()
		return unwrap(t.text), nil
	case tokName:
		p.advance()
		return t.text, nil
	}
	return "", p.fail("field name")
}

// parseAtomic: number | "true" | "false" | "null" | string | placeholder
func (p *parser) parseAtomic() (Expression, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		return parseNumber(t.text), nil

	case tokKeyword:
		switch t.text {
		case "true", "false":
			p.advance()
			return &Literal{Value: value.Bool(t.text == "true"), Type: schema.TypeFor(schema.Boolean)}, nil
		case "null":
			p.advance()
			return Null(), nil
		}

	case tokString:
		p.advance()
		return &Literal{Value: value.String(unescape(t.text[1 : len(t.text)-1])), Type: schema.TypeFor(schema.String)}, nil

	case tokPlaceholder:
		p.advance()
		text, list := strings.CutSuffix(t.text, "()")
		ph := &Placeholder{List: list}
		if text != "?" {
			ph.Tag = strings.ToLower(text[1:])
		}
		return ph, nil
	}
	return nil, p.fail("operand")
}

func parseNumber(text string) *Literal {
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &Literal{Value: value.Int(n), Type: schema.TypeFor(schema.Integer)}
		}
	}
	// The lexer only admits well-formed numbers.
	f, _ := strconv.ParseFloat(text, 64)
	return &Literal{Value: value.Float(f), Type: schema.TypeFor(schema.Float)}
}

// unwrap strips the delimiters of {model} and [field] tokens.
func unwrap(s string) string {
	return strings.TrimSpace(s[1 : len(s)-1])
}

// unescape removes the backslash from every escape sequence.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
