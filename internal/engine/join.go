package engine

import (
	"context"
	"fmt"

	"github.com/chunkdb/chunkdb/internal/query"
	"github.com/chunkdb/chunkdb/internal/schema"
	"github.com/chunkdb/chunkdb/internal/store"
)

type joinStep struct {
	right      *store.Dataset
	on         string
	right_cols []string
	// build_left hashes the accumulated left stream instead of the
	// right dataset, when the left side is estimated smaller.
	build_left bool
}

// compiled is a plan lowered to execution order: pushed-down scan
// predicates, the join sequence, post-join predicates, and the minimal
// column set each source has to decode.
type compiled struct {
	base       *store.Dataset
	base_cols  []string
	scan_preds []func(rowMap) bool
	post_preds []func(rowMap) bool
	joins      []*joinStep
	out        *schema.Schema
}

func compile(plan query.Plan) (*compiled, error) {
	base := plan.Base()
	base_schema := base.Schema()
	c := &compiled{base: base, out: plan.Schema()}

	// Column names are unique across a joined row, so a single
	// name set covers every source.
	needed := make(map[string]bool, c.out.Len())
	for _, name := range c.out.ColumnNames() {
		needed[name] = true
	}

	stage := base_schema
	for _, op := range plan.Ops() {
		switch op.Kind {
		case query.OpKindFilter:
			eval, err := op.Pred.Bind(stage)
			if err != nil {
				return nil, err
			}
			cols := op.Pred.Columns()
			for _, name := range cols {
				needed[name] = true
			}
			if columnsIn(cols, base_schema) {
				c.scan_preds = append(c.scan_preds, eval)
			} else {
				c.post_preds = append(c.post_preds, eval)
			}
		case query.OpKindJoin:
			needed[op.On] = true
			c.joins = append(c.joins, &joinStep{right: op.Right, on: op.On})
		}
		stage = op.Schema
	}

	c.base_cols = neededColumns(base_schema, needed)
	for _, j := range c.joins {
		needed[j.on] = true
		j.right_cols = neededColumns(j.right.Schema(), needed)
		j.build_left = j.right.TotalRows() > base.TotalRows()
	}
	return c, nil
}

// columnsIn reports whether every named column exists on s.
func columnsIn(cols []string, s *schema.Schema) bool {
	for _, name := range cols {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// neededColumns intersects the needed set with s, in declaration
// order. nil means every column is needed.
func neededColumns(s *schema.Schema, needed map[string]bool) []string {
	cols := make([]string, 0, s.Len())
	for _, name := range s.ColumnNames() {
		if needed[name] {
			cols = append(cols, name)
		}
	}
	if len(cols) == s.Len() {
		return nil
	}
	return cols
}

type stream = func(yield func(rowMap) error) error

// joinStream wraps left in a chunk-wise hash equi-join against j.
// The smaller side is hashed whole and must fit the memory budget;
// the other side streams through it one chunk at a time.
func (e *Engine) joinStream(ctx context.Context, left stream, j *joinStep) stream {
	if j.build_left {
		return func(yield func(rowMap) error) error {
			hash := make(map[any][]rowMap)
			var bytes int64
			err := left(func(row rowMap) error {
				bytes += approxMapRowBytes(row)
				if bytes > e.memory_budget {
					return fmt.Errorf("%w: join build on %q passed %d bytes", ErrMemoryBudget, j.on, e.memory_budget)
				}
				hash[row[j.on]] = append(hash[row[j.on]], row)
				return nil
			})
			if err != nil {
				return err
			}
			return e.scanDataset(ctx, j.right, j.right_cols, nil, func(right_row rowMap) error {
				for _, left_row := range hash[right_row[j.on]] {
					if err := yield(mergeRows(left_row, right_row, j.on)); err != nil {
						return err
					}
				}
				return nil
			})
		}
	}

	return func(yield func(rowMap) error) error {
		hash := make(map[any][]rowMap, j.right.TotalRows())
		var bytes int64
		err := e.scanDataset(ctx, j.right, j.right_cols, nil, func(row rowMap) error {
			bytes += approxMapRowBytes(row)
			if bytes > e.memory_budget {
				return fmt.Errorf("%w: join build on %q passed %d bytes", ErrMemoryBudget, j.on, e.memory_budget)
			}
			hash[row[j.on]] = append(hash[row[j.on]], row)
			return nil
		})
		if err != nil {
			return err
		}
		return left(func(row rowMap) error {
			for _, right_row := range hash[row[j.on]] {
				if err := yield(mergeRows(row, right_row, j.on)); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// mergeRows combines matched rows; the shared key keeps the left value.
func mergeRows(left, right rowMap, on string) rowMap {
	merged := make(rowMap, len(left)+len(right))
	for name, v := range left {
		merged[name] = v
	}
	for name, v := range right {
		if name != on {
			merged[name] = v
		}
	}
	return merged
}
