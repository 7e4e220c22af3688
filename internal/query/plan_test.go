package query_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gotest.tools/assert"

	. "github.com/chunkdb/chunkdb/internal/query"
	"github.com/chunkdb/chunkdb/internal/schema"
	"github.com/chunkdb/chunkdb/internal/store"
)

func usersDataset(t *testing.T) *store.Dataset {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,name,age\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%d,user%d,%d\n", i, i, 20+i)
	}
	d, err := store.Create(t.TempDir(), strings.NewReader(b.String()), store.Options{
		ChunkRows: 4,
		Header:    true,
	})
	assert.NilError(t, err)
	return d
}

func ordersDataset(t *testing.T) *store.Dataset {
	t.Helper()
	input := "order,id,total\n100,1,9.5\n101,2,3.25\n102,2,8\n"
	d, err := store.Create(t.TempDir(), strings.NewReader(input), store.Options{
		ChunkRows: 2,
		Header:    true,
	})
	assert.NilError(t, err)
	return d
}

func TestPlanFilter(t *testing.T) {
	t.Run("validates eagerly", func(t *testing.T) {
		p := NewPlan(usersDataset(t))

		_, err := p.Filter(Eq("missing", 1))
		var unknown *schema.UnknownColumnError
		assert.Assert(t, errors.As(err, &unknown), "got %v", err)

		_, err = p.Filter(Eq("age", "abc"))
		var mismatch *TypeMismatchError
		assert.Assert(t, errors.As(err, &mismatch), "got %v", err)
	})

	t.Run("does not mutate the receiver", func(t *testing.T) {
		p := NewPlan(usersDataset(t))
		filtered, err := p.Filter(Gt("age", 25))
		assert.NilError(t, err)

		assert.Equal(t, len(p.Ops()), 0)
		assert.Equal(t, len(filtered.Ops()), 1)
	})
}

func TestPlanSelect(t *testing.T) {
	t.Run("projects schema in requested order", func(t *testing.T) {
		p, err := NewPlan(usersDataset(t)).Select("age", "id")
		assert.NilError(t, err)
		assert.DeepEqual(t, p.Schema().ColumnNames(), []string{"age", "id"})
	})

	t.Run("idempotent", func(t *testing.T) {
		once, err := NewPlan(usersDataset(t)).Select("id", "name")
		assert.NilError(t, err)
		twice, err := once.Select("id", "name")
		assert.NilError(t, err)
		assert.Assert(t, once.Schema().Equal(twice.Schema()))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := NewPlan(usersDataset(t)).Select("id", "nope")
		var unknown *schema.UnknownColumnError
		assert.Assert(t, errors.As(err, &unknown), "got %v", err)
	})

	t.Run("filter by a selected-away column fails", func(t *testing.T) {
		p, err := NewPlan(usersDataset(t)).Select("id")
		assert.NilError(t, err)
		_, err = p.Filter(Gt("age", 25))
		var unknown *schema.UnknownColumnError
		assert.Assert(t, errors.As(err, &unknown), "got %v", err)
	})
}

func TestPlanJoin(t *testing.T) {
	t.Run("joined schema drops the duplicate key", func(t *testing.T) {
		p, err := NewPlan(usersDataset(t)).Join(ordersDataset(t), "id")
		assert.NilError(t, err)
		assert.DeepEqual(t, p.Schema().ColumnNames(),
			[]string{"id", "name", "age", "order", "total"})
	})

	t.Run("key type mismatch", func(t *testing.T) {
		input := "id,x\nfoo,1\n"
		right, err := store.Create(t.TempDir(), strings.NewReader(input), store.Options{
			ChunkRows: 2,
			Header:    true,
		})
		assert.NilError(t, err)

		_, err = NewPlan(usersDataset(t)).Join(right, "id")
		var mismatch *TypeMismatchError
		assert.Assert(t, errors.As(err, &mismatch), "got %v", err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewPlan(usersDataset(t)).Join(ordersDataset(t), "absent")
		var unknown *schema.UnknownColumnError
		assert.Assert(t, errors.As(err, &unknown), "got %v", err)
	})
}

func TestPredicate(t *testing.T) {
	s, err := schema.New([]*schema.Column{
		schema.NewColumn("n", schema.ColumnTypeInt),
		schema.NewColumn("name", schema.ColumnTypeString),
	})
	assert.NilError(t, err)

	t.Run("bound evaluation", func(t *testing.T) {
		eval, err := And(Ge("n", 2), Not(Eq("name", "skip"))).Bind(s)
		assert.NilError(t, err)

		assert.Assert(t, eval(map[string]any{"n": int64(3), "name": "ok"}))
		assert.Assert(t, !eval(map[string]any{"n": int64(1), "name": "ok"}))
		assert.Assert(t, !eval(map[string]any{"n": int64(3), "name": "skip"}))
	})

	t.Run("or", func(t *testing.T) {
		eval, err := Or(Eq("n", 1), Eq("n", 5)).Bind(s)
		assert.NilError(t, err)
		assert.Assert(t, eval(map[string]any{"n": int64(5)}))
		assert.Assert(t, !eval(map[string]any{"n": int64(2)}))
	})

	t.Run("columns", func(t *testing.T) {
		cols := And(Eq("n", 1), Or(Eq("name", "a"), Eq("n", 2))).Columns()
		assert.Equal(t, len(cols), 2)
	})

	t.Run("rejects malformed predicates", func(t *testing.T) {
		assert.Assert(t, (&Predicate{}).Validate(s) != nil)
		assert.Assert(t, Compare("n", "??", 1).Validate(s) != nil)
	})
}
