package engine

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/chunkdb/chunkdb/internal/query"
	"github.com/chunkdb/chunkdb/internal/schema"
	"github.com/chunkdb/chunkdb/internal/store"
	"github.com/chunkdb/chunkdb/pkg"
)

// ErrMemoryBudget is the explicit out-of-core boundary: raised when a
// materialized result or a join build side would not fit the configured
// budget. The engine never spills silently.
var ErrMemoryBudget = errors.New("memory budget exceeded")

const (
	DEFAULT_MEMORY_BUDGET = 64 << 20
	DEFAULT_CHUNK_ROWS    = store.DEFAULT_CHUNK_ROWS
)

// Engine evaluates query plans against chunk stores, one chunk at a
// time. A single evaluation is strictly sequential; independent
// evaluations may run concurrently over the same datasets.
type Engine struct {
	memory_budget int64
	chunk_rows    int
}

func New(memory_budget int64, chunk_rows int) *Engine {
	if memory_budget <= 0 {
		memory_budget = DEFAULT_MEMORY_BUDGET
	}
	if chunk_rows <= 0 {
		chunk_rows = DEFAULT_CHUNK_ROWS
	}
	return &Engine{memory_budget, chunk_rows}
}

// Table is a fully materialized result.
type Table struct {
	Schema *schema.Schema
	Rows   [][]any
}

// Records renders the rows name-addressed, for json responses.
func (t *Table) Records() []map[string]any {
	names := t.Schema.ColumnNames()
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(names))
		for i, name := range names {
			rec[name] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// Collect evaluates the plan into an in-memory table. This is the
// explicit trigger from lazy to materialized: if the accumulated result
// exceeds the memory budget it fails with ErrMemoryBudget and no
// partial table is returned.
func (e *Engine) Collect(ctx context.Context, plan query.Plan) (*Table, error) {
	out := plan.Schema()
	var rows [][]any
	var bytes int64

	err := e.run(ctx, plan, func(values []any) error {
		bytes += approxRowBytes(values)
		if bytes > e.memory_budget {
			return fmt.Errorf("%w: collected result passed %d bytes", ErrMemoryBudget, e.memory_budget)
		}
		rows = append(rows, values)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Table{Schema: out, Rows: rows}, nil
}

// Compute evaluates the plan into a new chunked dataset under dest,
// keeping the result out of core end to end.
func (e *Engine) Compute(ctx context.Context, plan query.Plan, dest, name string) (*store.Dataset, error) {
	if name == "" {
		name = path.Base(dest)
	}
	w, err := store.NewWriter(dest, plan.Schema(), e.chunk_rows)
	if err != nil {
		return nil, err
	}

	err = e.run(ctx, plan, func(values []any) error {
		return w.Append(values)
	})
	if err != nil {
		w.Abort()
		return nil, err
	}

	d, err := w.Commit(name)
	if err != nil {
		return nil, err
	}
	pkg.InfoLog("computed dataset", name, "rows", d.TotalRows())
	return d, nil
}

// Export streams the result as a delimited file, never materializing it.
func (e *Engine) Export(ctx context.Context, plan query.Plan, w io.Writer, separator rune, header bool) error {
	out := plan.Schema()
	cw := csv.NewWriter(w)
	if separator != 0 {
		cw.Comma = separator
	}

	if header {
		if err := cw.Write(out.ColumnNames()); err != nil {
			return err
		}
	}

	record := make([]string, out.Len())
	err := e.run(ctx, plan, func(values []any) error {
		for i, v := range values {
			record[i] = out.ColumnAt(i).Format(v)
		}
		return cw.Write(record)
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

type rowMap = map[string]any

// run evaluates the plan and emits rows in output schema order.
// Operator order is fixed regardless of how the plan was built:
// filters are pushed down to chunk-read time, then projection, then
// joins, so the fewest possible rows and columns are materialized at
// every step. Filters that need joined columns run after the joins.
func (e *Engine) run(ctx context.Context, plan query.Plan, emit func(values []any) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := compile(plan)
	if err != nil {
		return err
	}

	stream := func(yield func(rowMap) error) error {
		return e.scanDataset(ctx, c.base, c.base_cols, c.scan_preds, yield)
	}
	for _, j := range c.joins {
		stream = e.joinStream(ctx, stream, j)
	}

	names := c.out.ColumnNames()
	return stream(func(row rowMap) error {
		for _, pred := range c.post_preds {
			if !pred(row) {
				return nil
			}
		}
		values := make([]any, len(names))
		for i, name := range names {
			values[i] = row[name]
		}
		return emit(values)
	})
}

// scanDataset pulls one chunk at a time, decoding only cols and
// dropping rows that fail the pushed-down predicates.
func (e *Engine) scanDataset(ctx context.Context, d *store.Dataset, cols []string, preds []func(rowMap) bool, yield func(rowMap) error) error {
	names := orderedColumns(d.Schema(), cols)

	for ordinal := 0; ordinal < d.NumChunks(); ordinal++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := d.ReadChunk(ordinal, cols)
		if err != nil {
			return err
		}

	rows:
		for r.ReadNext() {
			values := r.Row()
			row := make(rowMap, len(names))
			for i, name := range names {
				row[name] = values[i]
			}
			for _, pred := range preds {
				if !pred(row) {
					continue rows
				}
			}
			if err := yield(row); err != nil {
				return err
			}
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("evaluating chunk %d of %s: %w", ordinal, d.Name(), err)
		}
	}
	return nil
}

// orderedColumns lists the requested column names in schema
// declaration order, matching the chunk reader's output layout.
func orderedColumns(s *schema.Schema, cols []string) []string {
	if cols == nil {
		return s.ColumnNames()
	}
	requested := make(map[string]bool, len(cols))
	for _, name := range cols {
		requested[name] = true
	}
	ordered := make([]string, 0, len(cols))
	for _, name := range s.ColumnNames() {
		if requested[name] {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

func approxValueBytes(v any) int64 {
	if s, ok := v.(string); ok {
		return int64(16 + len(s))
	}
	return 8
}

func approxRowBytes(values []any) int64 {
	total := int64(24)
	for _, v := range values {
		total += approxValueBytes(v)
	}
	return total
}

func approxMapRowBytes(row rowMap) int64 {
	total := int64(48)
	for name, v := range row {
		total += int64(len(name)) + approxValueBytes(v)
	}
	return total
}
