package value

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"ints", Int(1), Int(2), -1},
		{"int and float", Int(2), Float(2.0), 0},
		{"numeric strings compare numerically", String("10"), String("9"), 1},
		{"number and numeric string", Int(10), String("9.5"), 1},
		{"strings lexicographic", String("bar"), String("foo"), -1},
		{"number and text falls back to text", Int(10), String("abc"), -1},
		{"bool as number", Bool(true), Int(1), 0},
		{"exact decimals", Float(0.1), String("0.1"), 0},
		{"padded string is not numeric", String(" 5"), String("10"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.a, tt.b)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareNullIsUnknown(t *testing.T) {
	_, ok := Compare(Null{}, Int(1))
	assert.False(t, ok)
	_, ok = Compare(String("a"), nil)
	assert.False(t, ok)

	_, ok = Equal(Null{}, Null{})
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	eq, ok := Equal(Int(3), String("3"))
	assert.True(t, ok)
	assert.True(t, eq)

	eq, _ = Equal(List{Int(1), Int(2)}, List{Int(1), Float(2)})
	assert.True(t, eq)

	eq, _ = Equal(Object{"a": Int(1)}, Object{"a": Int(2)})
	assert.False(t, eq)

	eq, _ = Equal(String("Foo"), String("foo"))
	assert.False(t, eq)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   Value
		want bool
	}{
		{Bool(true), true},
		{Bool(false), false},
		{Int(0), false},
		{Int(-1), true},
		{Float(0), false},
		{String(""), false},
		{String("0"), false},
		{String("false"), true},
		{List{}, false},
		{List{Null{}}, true},
	}
	for _, tt := range tests {
		got, ok := Truthy(tt.in)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "Truthy(%#v)", tt.in)
	}

	_, ok := Truthy(Null{})
	assert.False(t, ok)
}

func TestSortCompareNullsFirst(t *testing.T) {
	vals := []Value{Int(3), Null{}, Int(1), Null{}, Int(2)}
	slices.SortStableFunc(vals, SortCompare)
	assert.Equal(t, []Value{Null{}, Null{}, Int(1), Int(2), Int(3)}, vals)
}
