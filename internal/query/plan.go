package query

import (
	"github.com/chunkdb/chunkdb/internal/schema"
	"github.com/chunkdb/chunkdb/internal/store"
)

type OpKind int

const (
	OpKindFilter OpKind = iota
	OpKindSelect
	OpKindJoin
)

type Op struct {
	Kind OpKind

	Pred    *Predicate     // OpKindFilter
	Columns []string       // OpKindSelect
	Right   *store.Dataset // OpKindJoin
	On      string         // OpKindJoin

	// Schema is the projected schema after this op.
	Schema *schema.Schema
}

// Plan is an immutable accumulated query: a base dataset plus an op
// sequence. Builder methods validate eagerly against the plan's
// projected schema and return a new Plan value; nothing touches disk
// until the plan is evaluated.
type Plan struct {
	base *store.Dataset
	ops  []Op
	s    *schema.Schema
}

func NewPlan(d *store.Dataset) Plan {
	return Plan{base: d, s: d.Schema()}
}

func (p Plan) Base() *store.Dataset { return p.base }

// Schema is the projected output schema after every accumulated op.
func (p Plan) Schema() *schema.Schema { return p.s }

func (p Plan) Ops() []Op {
	ops := make([]Op, len(p.ops))
	copy(ops, p.ops)
	return ops
}

func (p Plan) with(op Op, s *schema.Schema) Plan {
	op.Schema = s
	ops := make([]Op, len(p.ops), len(p.ops)+1)
	copy(ops, p.ops)
	return Plan{base: p.base, ops: append(ops, op), s: s}
}

// Filter adds a lazy row predicate. The predicate is validated now,
// evaluated at execution time.
func (p Plan) Filter(pred *Predicate) (Plan, error) {
	if err := pred.Validate(p.s); err != nil {
		return Plan{}, err
	}
	return p.with(Op{Kind: OpKindFilter, Pred: pred}, p.s), nil
}

// Select projects the output to the named columns, in the given order.
func (p Plan) Select(columns ...string) (Plan, error) {
	projected, err := p.s.Project(columns)
	if err != nil {
		return Plan{}, err
	}
	names := make([]string, len(columns))
	copy(names, columns)
	return p.with(Op{Kind: OpKindSelect, Columns: names}, projected), nil
}

// Join adds an equi-join against another dataset on a shared key. The
// key must exist on both sides with the same type. The joined schema is
// the current columns followed by the right side's columns minus the
// key; any other name collision fails with DuplicateNameError.
func (p Plan) Join(right *store.Dataset, on string) (Plan, error) {
	left_col, err := p.s.Column(on)
	if err != nil {
		return Plan{}, err
	}
	right_col, err := right.Schema().Column(on)
	if err != nil {
		return Plan{}, err
	}
	if left_col.Type != right_col.Type {
		return Plan{}, &TypeMismatchError{Column: on, Want: left_col.Type, Got: string(right_col.Type)}
	}

	joined, err := joinedSchema(p.s, right.Schema(), on)
	if err != nil {
		return Plan{}, err
	}
	return p.with(Op{Kind: OpKindJoin, Right: right, On: on}, joined), nil
}

func joinedSchema(left, right *schema.Schema, on string) (*schema.Schema, error) {
	columns := make([]*schema.Column, 0, left.Len()+right.Len()-1)
	for i := 0; i < left.Len(); i++ {
		columns = append(columns, left.ColumnAt(i))
	}
	for i := 0; i < right.Len(); i++ {
		c := right.ColumnAt(i)
		if c.Name == on {
			continue
		}
		columns = append(columns, c)
	}
	return schema.New(columns)
}
