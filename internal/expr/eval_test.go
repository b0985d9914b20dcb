package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

type mapRow map[string]value.Value

func (r mapRow) Get(field string) (value.Value, error) {
	v, ok := r[field]
	if !ok {
		return nil, &schema.UnknownFieldError{Field: field}
	}
	return v, nil
}

var fooRow = mapRow{
	"id":    value.Int(2),
	"name":  value.String("Foobar"),
	"group": value.String("user"),
	"score": value.Float(7.5),
	"note":  value.Null{},
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		input string
		args  []any
		want  value.Value
	}{
		{`id = 2`, nil, value.Bool(true)},
		{`id = "2"`, nil, value.Bool(true)},
		{`id != 2`, nil, value.Bool(false)},
		{`id <> 3`, nil, value.Bool(true)},
		{`id < 3`, nil, value.Bool(true)},
		{`id <= 1`, nil, value.Bool(false)},
		{`id > 1`, nil, value.Bool(true)},
		{`id >= 2`, nil, value.Bool(true)},
		{`id !< 2`, nil, value.Bool(true)},
		{`id !> 1`, nil, value.Bool(false)},
		{`score > 7`, nil, value.Bool(true)},
		{`name = "Foobar"`, nil, value.Bool(true)},
		{`name = "foobar"`, nil, value.Bool(false)},
		{`name like "fo%"`, nil, value.Bool(true)},
		{`name like "FOO___"`, nil, value.Bool(true)},
		{`name like "fo_"`, nil, value.Bool(false)},
		{`name like "%bar"`, nil, value.Bool(true)},
		{`name in %s()`, []any{[]string{"foo", "Foobar"}}, value.Bool(true)},
		{`id in %i()`, []any{[]int{3, 4}}, value.Bool(false)},
		{`group = %s and id = %i`, []any{"user", 2}, value.Bool(true)},
		{`group = "admin" or id = 2`, nil, value.Bool(true)},
		{`not group = "admin"`, nil, value.Bool(true)},
		{`true`, nil, value.Bool(true)},
		{`id`, nil, value.Int(2)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, err := E(tt.input, tt.args...)
			require.NoError(t, err)
			got, err := e.Evaluate(fooRow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateNullSemantics(t *testing.T) {
	tests := []struct {
		input string
		want  value.Value
	}{
		{`note = 1`, value.Null{}},
		{`note != 1`, value.Null{}},
		{`1 < note`, value.Null{}},
		{`note like "%"`, value.Null{}},
		{`note in %i()`, value.Null{}},
		{`not note = 1`, value.Null{}},
		{`note is null`, value.Bool(true)},
		{`note is not null`, value.Bool(false)},
		{`id is null`, value.Bool(false)},
		{`note = 1 and id = 2`, value.Null{}},
		{`note = 1 and id = 3`, value.Bool(false)},
		{`note = 1 or id = 2`, value.Bool(true)},
		{`note = 1 or id = 3`, value.Null{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var args []any
			if Placeholders(mustParse(t, tt.input)) > 0 {
				args = []any{[]int{1}}
			}
			e, err := E(tt.input, args...)
			require.NoError(t, err)
			got, err := e.Evaluate(fooRow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			ok, err := Matches(e, fooRow)
			require.NoError(t, err)
			assert.Equal(t, got == value.Bool(true), ok)
		})
	}
}

func mustParse(t *testing.T, input string) Expression {
	t.Helper()
	e, err := Parse(input)
	require.NoError(t, err)
	return e
}

func TestEvaluateInWithNullMember(t *testing.T) {
	e := MustE(`id in ?()`, []any{nil, 3})
	got, err := e.Evaluate(fooRow)
	require.NoError(t, err)
	assert.Equal(t, value.Null{}, got)

	e = MustE(`id in ?()`, []any{nil, 2})
	got, err = e.Evaluate(fooRow)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), got)
}

func TestEvaluateShortCircuit(t *testing.T) {
	// The right operand references a missing field; short-circuiting means
	// it is never looked up.
	got, err := MustE(`id = 3 and missing = 1`).Evaluate(fooRow)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), got)

	got, err = MustE(`id = 2 or missing = 1`).Evaluate(fooRow)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), got)

	_, err = MustE(`id = 2 and missing = 1`).Evaluate(fooRow)
	assert.True(t, schema.IsUnknownField(err))
}

func TestEvaluateUnboundPlaceholder(t *testing.T) {
	e := mustParse(t, "id = ?")
	_, err := e.Evaluate(fooRow)
	assert.True(t, IsBindingError(err))
}

func TestEvaluateFunctions(t *testing.T) {
	tests := []struct {
		fn   *Func
		want value.Value
	}{
		{Call("lower", Col("name")), value.String("foobar")},
		{Call("UPPER", Col("group")), value.String("USER")},
		{Call("length", Col("name")), value.Int(6)},
		{Call("abs", Lit(-4)), value.Int(4)},
		{Call("abs", Lit(-1.5)), value.Float(1.5)},
		{Call("coalesce", Col("note"), Col("group")), value.String("user")},
		{Call("lower", Col("note")), value.Null{}},
	}
	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			got, err := tt.fn.Evaluate(fooRow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Call("count", Col("id")).Evaluate(fooRow)
	assert.True(t, IsUnsupported(err))

	_, err = (&Raw{SQL: "1"}).Evaluate(fooRow)
	assert.True(t, IsUnsupported(err))
}

func TestLike(t *testing.T) {
	tests := []struct {
		s, pattern string
		want       bool
	}{
		{"foo", "fo%", true},
		{"FOO", "fo%", true},
		{"foo", "f_o", true},
		{"foo", "f_", false},
		{"50%", `50\%`, true},
		{"500", `50\%`, false},
		{"a_b", `a\_b`, true},
		{"axb", `a\_b`, false},
		{"a.b", "a.b", true},
		{"axb", "a.b", false},
		{"line\nbreak", "line%", true},
		{"\u00c9cole", "\u00c9COLE", true},
		{"\u00c9clair", "\u00e9clair", false},
		{"stra\u00dfe", "strasse", false},
		{"\u00df", "_", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Like(tt.s, tt.pattern), "%q like %q", tt.s, tt.pattern)
	}
}

func TestLikeCachesPatterns(t *testing.T) {
	const pattern = "cache-me-%"
	likePatterns.Remove(pattern)

	assert.True(t, Like("cache-me-once", pattern))
	first, ok := likePatterns.Get(pattern)
	require.True(t, ok)

	assert.False(t, Like("other", pattern))
	again, ok := likePatterns.Get(pattern)
	require.True(t, ok)
	assert.Same(t, first, again)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_\\`, EscapeLike(`50%_\`))
	assert.True(t, Like("50%_x", EscapeLike("50%_")+"%"))
}
