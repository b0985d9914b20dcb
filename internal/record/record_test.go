package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

func usersTable() *schema.Table {
	return schema.NewTable("users").
		AddField("id", schema.TypeFor(schema.Integer).AsSerial()).
		AddField("name", schema.TypeFor(schema.String)).
		AddField("group", schema.TypeFor(schema.String).WithDefault(value.String("user"))).
		AddVirtual("display").
		SetPrimaryKey("id")
}

func TestNewUsesDefaults(t *testing.T) {
	r := New(usersTable())
	assert.True(t, r.IsNew())
	assert.False(t, r.IsSaved())

	v, err := r.Get("group")
	require.NoError(t, err)
	assert.Equal(t, value.String("user"), v)

	v, err = r.Get("id")
	require.NoError(t, err)
	assert.Equal(t, value.Null{}, v)
}

func TestDecode(t *testing.T) {
	r, err := Decode(usersTable(), map[string]any{"id": "3", "name": "c"})
	require.NoError(t, err)
	assert.False(t, r.IsNew())
	assert.True(t, r.IsSaved())
	assert.Empty(t, r.Changed())

	id, err := r.Get("id")
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), id)
	assert.Equal(t, map[string]any{"id": int64(3), "name": "c", "group": "user"}, r.Map())
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(usersTable(), map[string]any{"nope": 1})
	assert.True(t, schema.IsUnknownField(err))

	_, err = Decode(usersTable(), map[string]any{"id": "abc"})
	assert.True(t, schema.IsTypeCoercion(err))
}

func TestGetUnknownField(t *testing.T) {
	r := New(usersTable())
	_, err := r.Get("missing")
	var ufe *schema.UnknownFieldError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "missing", ufe.Field)
	assert.Equal(t, "users", ufe.Source)
}

func TestSetTracksChanges(t *testing.T) {
	r, err := Decode(usersTable(), map[string]any{"id": 1, "name": "a"})
	require.NoError(t, err)

	require.NoError(t, r.Set("name", "b"))
	assert.False(t, r.IsSaved())
	assert.Equal(t, map[string]value.Value{"name": value.String("b")}, r.Changed())

	r.MarkSaved()
	assert.True(t, r.IsSaved())
	assert.Empty(t, r.Changed())
}

func TestVirtualFields(t *testing.T) {
	r := New(usersTable())
	v, err := r.Get("display")
	require.NoError(t, err)
	assert.Equal(t, value.Null{}, v)

	require.NoError(t, r.Set("display", "shown"))
	v, _ = r.Get("display")
	assert.Equal(t, value.String("shown"), v)
	assert.NotContains(t, r.Data(), "display")
}

func TestAdHocRecords(t *testing.T) {
	r, err := FromMap(map[string]any{"n": "foo", "c": 2})
	require.NoError(t, err)
	assert.Nil(t, r.Definition())
	assert.Equal(t, []string{"c", "n"}, r.Fields())

	require.NoError(t, r.Set("n", 5))
	v, _ := r.Get("n")
	assert.Equal(t, value.Int(5), v)

	assert.True(t, schema.IsUnknownField(r.Set("x", 1)))
}

func TestCloneIsIndependent(t *testing.T) {
	r, err := Decode(usersTable(), map[string]any{"id": 1, "name": "a"})
	require.NoError(t, err)
	c := r.Clone()
	require.NoError(t, c.Set("name", "z"))

	v, _ := r.Get("name")
	assert.Equal(t, value.String("a"), v)
}

func TestProject(t *testing.T) {
	r, err := Decode(usersTable(), map[string]any{"id": 1, "name": "a"})
	require.NoError(t, err)
	p, err := r.Project("name")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, p.Fields())

	_, err = r.Project("bogus")
	assert.Error(t, err)
}
