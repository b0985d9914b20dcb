package schema

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbal/internal/value"
)

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{
		"integer":  Integer,
		"INT":      Integer,
		"bool":     Boolean,
		"datetime": DateTime,
		"json":     Object,
		" uuid ":   UUID,
	} {
		got, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseKind("decimal")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		typ  DataType
		in   value.Value
		want value.Value
	}{
		{"null passes", TypeFor(Integer), value.Null{}, value.Null{}},
		{"int from string", TypeFor(Integer), value.String(" 42"), value.Int(42)},
		{"int from integral float", TypeFor(Integer), value.Float(3), value.Int(3)},
		{"int from bool", TypeFor(Integer), value.Bool(true), value.Int(1)},
		{"float from int", TypeFor(Float), value.Int(2), value.Float(2)},
		{"float from string", TypeFor(Float), value.String("1.25"), value.Float(1.25)},
		{"bool from int", TypeFor(Boolean), value.Int(0), value.Bool(false)},
		{"bool from string", TypeFor(Boolean), value.String("true"), value.Bool(true)},
		{"string from int", TypeFor(String), value.Int(7), value.String("7")},
		{"enum member", TypeFor(Enum).WithValues("a", "b"), value.String("b"), value.String("b")},
		{"date from string", TypeFor(Date), value.String("1970-01-02"), value.Int(86400)},
		{"datetime from string", TypeFor(DateTime), value.String("1970-01-01 00:01:00"), value.Int(60)},
		{"datetime from rfc3339", TypeFor(DateTime), value.String("1970-01-01T00:00:10Z"), value.Int(10)},
		{"object from json", TypeFor(Object), value.String(`{"a":1}`), value.Object{"a": value.Int(1)}},
		{"uuid normalized", TypeFor(UUID), value.String("6BA7B810-9DAD-11D1-80B4-00C04FD430C8"), value.String("6ba7b810-9dad-11d1-80b4-00c04fd430c8")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Convert(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  DataType
		in   value.Value
	}{
		{"int from text", TypeFor(Integer), value.String("abc")},
		{"int from fraction", TypeFor(Integer), value.Float(1.5)},
		{"float from text", TypeFor(Float), value.String("x")},
		{"bool from text", TypeFor(Boolean), value.String("maybe")},
		{"string from list", TypeFor(String), value.List{}},
		{"enum non member", TypeFor(Enum).WithValues("a"), value.String("z")},
		{"date from garbage", TypeFor(Date), value.String("yesterday")},
		{"object from scalar json", TypeFor(Object), value.String("1")},
		{"uuid invalid", TypeFor(UUID), value.String("nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.typ.Convert(tt.in)
			require.Error(t, err)
			var tce *TypeCoercionError
			require.ErrorAs(t, err, &tce)
			assert.Equal(t, tt.typ.Kind, tce.Type.Kind)
			assert.True(t, IsTypeCoercion(err))
		})
	}
}

func TestGenerateUUID(t *testing.T) {
	v, ok := TypeFor(UUID).AsSerial().Generate()
	require.True(t, ok)
	_, err := uuid.Parse(string(v.(value.String)))
	assert.NoError(t, err)

	_, ok = TypeFor(Integer).AsSerial().Generate()
	assert.False(t, ok)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "1970-01-02", TypeFor(Date).FormatDate(86400))
	assert.Equal(t, "1970-01-01 00:01:00", TypeFor(DateTime).FormatDate(60))
}

func TestDataTypeString(t *testing.T) {
	assert.Equal(t, "string(20) null", TypeFor(String).WithLength(20).AsNullable().String())
	assert.Equal(t, "integer serial", TypeFor(Integer).AsSerial().String())
}

func TestInferType(t *testing.T) {
	assert.Equal(t, Integer, InferType(value.Int(1)).Kind)
	assert.Equal(t, Float, InferType(value.Float(1)).Kind)
	assert.Equal(t, Boolean, InferType(value.Bool(true)).Kind)
	assert.Equal(t, Object, InferType(value.List{}).Kind)
	assert.Equal(t, String, InferType(value.String("")).Kind)
}
