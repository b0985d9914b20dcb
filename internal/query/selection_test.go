package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/schema"
)

func predicate(t *testing.T, s Selection) string {
	t.Helper()
	require.NoError(t, s.Err())
	p := s.Clauses().Predicate
	if p == nil {
		return ""
	}
	return p.String()
}

func TestWhere(t *testing.T) {
	s := New().Where("id = %i", 2)
	assert.Equal(t, "id = 2", predicate(t, s))

	s = s.Where("name = ?", "foo")
	assert.Equal(t, `name = "foo"`, predicate(t, s))

	s = s.Where(nil)
	assert.Equal(t, "", predicate(t, s))
}

func TestAndOrWhere(t *testing.T) {
	s := New().AndWhere("a = 1")
	assert.Equal(t, "a = 1", predicate(t, s))

	s = s.And("b = ?", 2).Or("c = 3")
	assert.Equal(t, "a = 1 and b = 2 or c = 3", predicate(t, s))

	s = New().OrWhere("a = 1").OrWhere("b = 2").AndWhere("c = 3")
	assert.Equal(t, "(a = 1 or b = 2) and c = 3", predicate(t, s))
}

func TestWhereAcceptsExpressions(t *testing.T) {
	e, err := expr.Parse("id > ?")
	require.NoError(t, err)
	s := New().Where(e, 4)
	assert.Equal(t, "id > 4", predicate(t, s))
}

func TestSelectionIsImmutable(t *testing.T) {
	base := New().Where("a = 1").OrderBy("a")
	left := base.OrderBy("b")
	right := base.OrderByDescending("c")

	assert.Len(t, base.Clauses().Ordering, 1)
	require.Len(t, left.Clauses().Ordering, 2)
	require.Len(t, right.Clauses().Ordering, 2)
	assert.Equal(t, "b", left.Clauses().Ordering[1].Expr.String())
	assert.Equal(t, "c", right.Clauses().Ordering[1].Expr.String())

	_ = base.AndWhere("b = 2")
	assert.Equal(t, "a = 1", predicate(t, base))
}

func TestOrdering(t *testing.T) {
	s := New().OrderBy("name").OrderByDescending("id")
	assert.Equal(t, "order by name, id desc", s.String())

	s = s.ReverseOrder()
	assert.Equal(t, "order by name desc, id", s.String())

	s = s.OrderBy(nil)
	assert.Empty(t, s.Clauses().Ordering)
}

func TestLimitOffset(t *testing.T) {
	s := New().Limit(5).Offset(10)
	c := s.Clauses()
	assert.True(t, c.HasLimit)
	assert.Equal(t, 5, c.Limit)
	assert.Equal(t, 10, c.Offset)

	c = s.Limit(-1).Clauses()
	assert.False(t, c.HasLimit)

	assert.Error(t, New().Offset(-1).Err())
}

func TestGroupBy(t *testing.T) {
	s := New().GroupBy([]string{"group", "name"}, "name in %s()", []string{"foo", "bar"})
	require.NoError(t, s.Err())
	c := s.Clauses()
	require.Len(t, c.Grouping, 2)
	assert.Equal(t, "group", c.Grouping[0].String())
	assert.Equal(t, `name in ("foo", "bar")`, c.GroupPredicate.String())

	s = New().GroupBy("group")
	require.NoError(t, s.Err())
	assert.Len(t, s.Clauses().Grouping, 1)
	assert.Nil(t, s.Clauses().GroupPredicate)

	assert.Error(t, New().GroupBy(42).Err())
}

func TestSelect(t *testing.T) {
	s := New().Select(map[string]string{"n": "name", "g": "[group]"})
	require.NoError(t, s.Err())
	proj := s.Clauses().Projection
	require.Len(t, proj, 2)
	assert.Equal(t, "g", proj[0].Name())
	assert.Equal(t, "n", proj[1].Name())

	s = New().Select("id").Select([]string{"name", "u.email"}).Select("score", "s")
	names := []string{}
	for _, p := range s.Clauses().Projection {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"id", "name", "u.email", "s"}, names)
}

func TestBuildErrorsAreDeferred(t *testing.T) {
	s := New().Where("id = @x").OrderBy("name").Limit(3)
	var pe *expr.LexError
	require.ErrorAs(t, s.Err(), &pe)
	assert.Len(t, s.Clauses().Ordering, 1)

	s = New().Where("id = ? and name = ?", 1)
	assert.True(t, expr.IsBindingError(s.Err()))

	s = New().Where("a = 1 and")
	assert.True(t, expr.IsParseError(s.Err()))

	// The first failure is kept.
	s = New().Where("a =").Where("b = ?")
	assert.True(t, expr.IsParseError(s.Err()))

	assert.Error(t, New().Where(3.5).Err())
	assert.Error(t, New().Where(nil, 1).Err())
}

func TestParserIsUsed(t *testing.T) {
	cache, err := expr.NewCache(4)
	require.NoError(t, err)
	s := NewWithParser(cache).Where("a = ?", 1).AndWhere("a = ?", 2)
	require.NoError(t, s.Err())
	assert.Equal(t, 1, cache.Len())

	var zero Selection
	assert.Equal(t, "a = 1", predicate(t, zero.Where("a = 1")))
}

func TestFields(t *testing.T) {
	s := New().
		Where("id > 1 and u.name like ?", "a%").
		OrderBy("score").
		GroupBy("group", "id != 3").
		Select("name")
	assert.Equal(t, []string{"id", "u.name", "score", "group", "name"}, s.Fields())
}

func TestValidate(t *testing.T) {
	def := schema.NewTable("User").
		AddField("id", schema.TypeFor(schema.Integer).AsSerial()).
		AddField("name", schema.TypeFor(schema.String))

	assert.NoError(t, New().Where("id = 1").OrderBy("name").Validate(def))
	assert.NoError(t, New().As("u").Where("u.id = 1 and other.x = 2").Validate(def))

	err := New().Where("nope = 1").Validate(def)
	assert.True(t, schema.IsUnknownField(err))

	err = New().As("u").Where("u.nope = 1").Validate(def)
	assert.True(t, schema.IsUnknownField(err))

	err = New().Where("a =").Validate(def)
	assert.True(t, expr.IsParseError(err))
}

func TestOrderingByProjectionAlias(t *testing.T) {
	def := schema.NewTable("User").
		AddField("id", schema.TypeFor(schema.Integer).AsSerial()).
		AddField("name", schema.TypeFor(schema.String))

	s := New().Select("name", "n").OrderBy("n")
	assert.Equal(t, []string{"name"}, s.Fields())
	assert.NoError(t, s.Validate(def))
	assert.Equal(t, "name", s.Clauses().SortKey(s.Clauses().Ordering[0]).String())

	err := New().OrderBy("n").Validate(def)
	assert.True(t, schema.IsUnknownField(err))

	// Qualified columns never name an alias.
	q := New().As("u").Select("name", "n").OrderBy("u.n")
	assert.True(t, schema.IsUnknownField(q.Validate(def)))
}

func TestString(t *testing.T) {
	s := New().
		Distinct(true).
		Select("name", "n").
		Where("id > 1").
		GroupBy("name", "name != ?", "x").
		OrderByDescending("id").
		Limit(2).
		Offset(1)
	assert.Equal(t,
		`distinct select name as n where id > 1 group by name having name != "x" order by id desc limit 2 offset 1`,
		s.String())
	assert.Equal(t, "", New().String())
}
