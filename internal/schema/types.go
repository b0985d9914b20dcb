package schema

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/dbal/internal/value"
)

// Kind identifies the storage type of a field.
type Kind int

const (
	Integer Kind = iota + 1
	Float
	Boolean
	String
	Text
	Date
	DateTime
	Binary
	Enum
	Object
	UUID
)

var kindNames = map[Kind]string{
	Integer:  "integer",
	Float:    "float",
	Boolean:  "boolean",
	String:   "string",
	Text:     "text",
	Date:     "date",
	DateTime: "datetime",
	Binary:   "binary",
	Enum:     "enum",
	Object:   "object",
	UUID:     "uuid",
}

var kindAliases = map[string]Kind{
	"int":  Integer,
	"bool": Boolean,
	"str":  String,
	"json": Object,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a type name ("integer", "int", "datetime", ...).
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}

// DataType describes a field: its kind plus the constraints the database
// layer needs to encode values of it.
type DataType struct {
	Kind     Kind
	Nullable bool
	// Serial marks values generated by the source on insert
	// (auto-increment integers, random UUIDs).
	Serial  bool
	Length  int
	Values  []string // allowed enum values
	Default value.Value
}

// TypeFor returns the plain DataType of kind k.
func TypeFor(k Kind) DataType {
	return DataType{Kind: k}
}

// AsNullable returns a copy of t that accepts null.
func (t DataType) AsNullable() DataType {
	t.Nullable = true
	return t
}

// AsSerial returns a copy of t whose values are generated on insert.
func (t DataType) AsSerial() DataType {
	t.Serial = true
	return t
}

// WithLength returns a copy of t limited to n characters.
func (t DataType) WithLength(n int) DataType {
	t.Length = n
	return t
}

// WithValues returns a copy of t restricted to the given enum values.
func (t DataType) WithValues(vals ...string) DataType {
	t.Values = slices.Clone(vals)
	return t
}

// WithDefault returns a copy of t with a default value.
func (t DataType) WithDefault(v value.Value) DataType {
	t.Default = v
	return t
}

func (t DataType) String() string {
	var b strings.Builder
	b.WriteString(t.Kind.String())
	if t.Length > 0 {
		fmt.Fprintf(&b, "(%d)", t.Length)
	}
	if len(t.Values) > 0 {
		fmt.Fprintf(&b, "[%s]", strings.Join(t.Values, ","))
	}
	if t.Serial {
		b.WriteString(" serial")
	}
	if t.Nullable {
		b.WriteString(" null")
	}
	return b.String()
}

// IsTextual reports whether values of t are stored as strings.
func (t DataType) IsTextual() bool {
	switch t.Kind {
	case String, Text, Binary, Enum, UUID:
		return true
	}
	return false
}

// InferType picks the DataType matching the dynamic kind of v.
func InferType(v value.Value) DataType {
	switch v.(type) {
	case value.Bool:
		return TypeFor(Boolean)
	case value.Int:
		return TypeFor(Integer)
	case value.Float:
		return TypeFor(Float)
	case value.List, value.Object:
		return TypeFor(Object)
	default:
		return TypeFor(String)
	}
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Convert coerces v into the representation of t. Null passes through
// unchanged; null constraints are enforced by the storage layer.
func (t DataType) Convert(v value.Value) (value.Value, error) {
	if value.IsNull(v) {
		return value.Null{}, nil
	}
	fail := func(reason string) (value.Value, error) {
		return nil, &TypeCoercionError{Type: t, Value: v, Reason: reason}
	}

	switch t.Kind {
	case Integer:
		switch val := v.(type) {
		case value.Int:
			return val, nil
		case value.Bool:
			if val {
				return value.Int(1), nil
			}
			return value.Int(0), nil
		case value.Float:
			f := float64(val)
			if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
				return fail("not an integral number")
			}
			return value.Int(int64(f)), nil
		case value.String:
			n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
			if err != nil {
				return fail("not an integer")
			}
			return value.Int(n), nil
		}
		return fail("not an integer")

	case Float:
		d, ok := value.Numeric(v)
		if !ok {
			return fail("not a number")
		}
		f, _ := d.Float64()
		return value.Float(f), nil

	case Boolean:
		switch val := v.(type) {
		case value.Bool:
			return val, nil
		case value.Int:
			return value.Bool(val != 0), nil
		case value.Float:
			return value.Bool(val != 0), nil
		case value.String:
			switch strings.ToLower(string(val)) {
			case "1", "true", "t", "yes":
				return value.Bool(true), nil
			case "0", "false", "f", "no", "":
				return value.Bool(false), nil
			}
		}
		return fail("not a boolean")

	case String, Text, Binary, Enum:
		var s string
		switch val := v.(type) {
		case value.String:
			s = string(val)
		case value.Int, value.Float, value.Bool:
			s = value.Text(val)
		default:
			return fail("not a scalar")
		}
		if t.Kind == Enum && len(t.Values) > 0 && !slices.Contains(t.Values, s) {
			return fail(fmt.Sprintf("not one of %s", strings.Join(t.Values, ", ")))
		}
		return value.String(s), nil

	case Date, DateTime:
		switch val := v.(type) {
		case value.Int:
			return val, nil
		case value.Float:
			return value.Int(int64(val)), nil
		case value.String:
			s := strings.TrimSpace(string(val))
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return value.Int(n), nil
			}
			for _, layout := range []string{dateTimeLayout, time.RFC3339, dateLayout} {
				if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
					return value.Int(ts.Unix()), nil
				}
			}
		}
		return fail("not a date")

	case Object:
		switch val := v.(type) {
		case value.Object, value.List:
			return val, nil
		case value.String:
			decoded, err := value.UnmarshalJSON([]byte(val))
			if err != nil {
				return fail("invalid JSON")
			}
			switch decoded.(type) {
			case value.Object, value.List:
				return decoded, nil
			}
		}
		return fail("not an object")

	case UUID:
		s, ok := v.(value.String)
		if !ok {
			return fail("not a UUID string")
		}
		id, err := uuid.Parse(string(s))
		if err != nil {
			return fail("not a UUID")
		}
		return value.String(id.String()), nil
	}
	return fail("unknown kind")
}

// Generate produces a fresh value for a serial field of kind UUID.
// Integer serials are assigned by the source's own counter.
func (t DataType) Generate() (value.Value, bool) {
	if !t.Serial || t.Kind != UUID {
		return nil, false
	}
	return value.String(uuid.NewString()), true
}

// FormatDate renders a unix timestamp in the date layout of t.
func (t DataType) FormatDate(ts int64) string {
	layout := dateTimeLayout
	if t.Kind == Date {
		layout = dateLayout
	}
	return time.Unix(ts, 0).UTC().Format(layout)
}
