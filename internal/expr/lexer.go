package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer defines the token types of the expression language. Rules are
// tried in order; keywords precede names so "in" never lexes as a field.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},

	// {Model} and [field] references
	{Name: "Model", Pattern: `\{[^{}]+\}`},
	{Name: "Field", Pattern: `\[[^\[\]]+\]`},

	// Literals
	{Name: "Number", Pattern: `-?(?:0|[1-9]\d*)(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`},
	{Name: "Placeholder", Pattern: `(?:\?|%[a-zA-Z_\\]+)(?:\(\))?`},

	{Name: "Operator", Pattern: `!=|<>|>=|<=|!<|!>|=|<|>`},
	{Name: "Keyword", Pattern: `(?i)(?:like|in|is|not|and|or|true|false|null)\b`},
	{Name: "Name", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[.(),]`},
})

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokModel
	tokField
	tokNumber
	tokString
	tokPlaceholder
	tokOperator
	tokKeyword
	tokName
	tokPunct
)

var tokenKindNames = map[tokenKind]string{
	tokEOF:         "end of expression",
	tokModel:       "model",
	tokField:       "field",
	tokNumber:      "number",
	tokString:      "string",
	tokPlaceholder: "placeholder",
	tokOperator:    "operator",
	tokKeyword:     "keyword",
	tokName:        "name",
	tokPunct:       "punctuation",
}

func (k tokenKind) String() string { return tokenKindNames[k] }

// token is a lexed token. Keyword text is lower-cased; all other text is
// kept as written.
type token struct {
	kind   tokenKind
	text   string
	offset int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

var symbolKinds = func() map[lexer.TokenType]tokenKind {
	kinds := map[string]tokenKind{
		"Model":       tokModel,
		"Field":       tokField,
		"Number":      tokNumber,
		"String":      tokString,
		"Placeholder": tokPlaceholder,
		"Operator":    tokOperator,
		"Keyword":     tokKeyword,
		"Name":        tokName,
		"Punct":       tokPunct,
	}
	out := make(map[lexer.TokenType]tokenKind, len(kinds))
	for name, typ := range exprLexer.Symbols() {
		if k, ok := kinds[name]; ok {
			out[typ] = k
		}
	}
	return out
}()

var whitespaceType = exprLexer.Symbols()["Whitespace"]

// tokenize splits input into tokens, dropping whitespace and appending a
// final EOF token.
func tokenize(input string) ([]token, error) {
	lex, err := exprLexer.LexString("", input)
	if err != nil {
		return nil, lexError(input, err)
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, lexError(input, err)
	}

	toks := make([]token, 0, len(raw))
	for _, t := range raw {
		if t.EOF() {
			break
		}
		if t.Type == whitespaceType {
			continue
		}
		kind := symbolKinds[t.Type]
		text := t.Value
		if kind == tokKeyword {
			text = strings.ToLower(text)
		}
		toks = append(toks, token{kind: kind, text: text, offset: t.Pos.Offset})
	}
	return append(toks, token{kind: tokEOF, offset: len(input)}), nil
}

func lexError(input string, err error) error {
	le := &LexError{Input: input, Msg: err.Error()}
	var perr *lexer.Error
	if errors.As(err, &perr) {
		le.Offset = perr.Pos.Offset
		le.Msg = perr.Msg
	}
	return le
}

var keywords = map[string]bool{
	"like": true, "in": true, "is": true, "not": true,
	"and": true, "or": true, "true": true, "false": true, "null": true,
}

func isKeyword(s string) bool {
	return keywords[strings.ToLower(s)]
}
