package query

import (
	"errors"
	"fmt"

	"github.com/chunkdb/chunkdb/internal/schema"
)

type CompareOp string

const (
	OpEq CompareOp = "eq"
	OpNe CompareOp = "ne"
	OpLt CompareOp = "lt"
	OpLe CompareOp = "le"
	OpGt CompareOp = "gt"
	OpGe CompareOp = "ge"
)

var VALID_COMPARE_OPS = []CompareOp{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe}

// Predicate is a boolean expression over column names: either a single
// comparison against a literal, or a combination of sub-predicates.
// Column names and literal types are checked at plan-build time; rows
// are evaluated lazily, one at a time, during execution.
type Predicate struct {
	Column string    `json:"column,omitempty"`
	Op     CompareOp `json:"op,omitempty"`
	Value  any       `json:"value,omitempty"`

	And []*Predicate `json:"and,omitempty"`
	Or  []*Predicate `json:"or,omitempty"`
	Not *Predicate   `json:"not,omitempty"`
}

func Compare(column string, op CompareOp, value any) *Predicate {
	return &Predicate{Column: column, Op: op, Value: value}
}

func Eq(column string, value any) *Predicate { return Compare(column, OpEq, value) }
func Ne(column string, value any) *Predicate { return Compare(column, OpNe, value) }
func Lt(column string, value any) *Predicate { return Compare(column, OpLt, value) }
func Le(column string, value any) *Predicate { return Compare(column, OpLe, value) }
func Gt(column string, value any) *Predicate { return Compare(column, OpGt, value) }
func Ge(column string, value any) *Predicate { return Compare(column, OpGe, value) }

func And(preds ...*Predicate) *Predicate { return &Predicate{And: preds} }
func Or(preds ...*Predicate) *Predicate  { return &Predicate{Or: preds} }
func Not(pred *Predicate) *Predicate     { return &Predicate{Not: pred} }

func (p *Predicate) isLeaf() bool { return p.Column != "" }

// Columns lists every column name the predicate references.
func (p *Predicate) Columns() []string {
	seen := map[string]bool{}
	var walk func(*Predicate)
	walk = func(p *Predicate) {
		if p == nil {
			return
		}
		if p.isLeaf() {
			seen[p.Column] = true
			return
		}
		for _, sub := range p.And {
			walk(sub)
		}
		for _, sub := range p.Or {
			walk(sub)
		}
		walk(p.Not)
	}
	walk(p)

	columns := make([]string, 0, len(seen))
	for c := range seen {
		columns = append(columns, c)
	}
	return columns
}

// Validate checks the predicate against a schema: referenced columns
// must exist and literals must fit their column's type. Fails fast at
// plan-build time, before any chunk is touched.
func (p *Predicate) Validate(s *schema.Schema) error {
	if p == nil {
		return errors.New("nil predicate")
	}

	if p.isLeaf() {
		col, err := s.Column(p.Column)
		if err != nil {
			return err
		}
		valid := false
		for _, op := range VALID_COMPARE_OPS {
			if p.Op == op {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid compare op %q", p.Op)
		}
		if _, ok := col.Normalize(p.Value); !ok {
			return &TypeMismatchError{Column: p.Column, Want: col.Type, Got: fmt.Sprintf("%T", p.Value)}
		}
		return nil
	}

	groups := 0
	if len(p.And) > 0 {
		groups++
	}
	if len(p.Or) > 0 {
		groups++
	}
	if p.Not != nil {
		groups++
	}
	if groups != 1 {
		return errors.New("predicate must be a comparison or exactly one of and/or/not")
	}

	for _, sub := range p.And {
		if err := sub.Validate(s); err != nil {
			return err
		}
	}
	for _, sub := range p.Or {
		if err := sub.Validate(s); err != nil {
			return err
		}
	}
	if p.Not != nil {
		return p.Not.Validate(s)
	}
	return nil
}

// Bind compiles the predicate into an evaluator over name-addressed
// rows, normalizing literals once up front.
func (p *Predicate) Bind(s *schema.Schema) (func(row map[string]any) bool, error) {
	if err := p.Validate(s); err != nil {
		return nil, err
	}
	return p.bind(s), nil
}

func (p *Predicate) bind(s *schema.Schema) func(row map[string]any) bool {
	if p.isLeaf() {
		col, _ := s.Column(p.Column)
		operand, _ := col.Normalize(p.Value)
		name, op := p.Column, p.Op
		return func(row map[string]any) bool {
			value, ok := row[name]
			if !ok {
				return false
			}
			cmp := col.Compare(value, operand)
			switch op {
			case OpEq:
				return cmp == 0
			case OpNe:
				return cmp != 0
			case OpLt:
				return cmp < 0
			case OpLe:
				return cmp <= 0
			case OpGt:
				return cmp > 0
			case OpGe:
				return cmp >= 0
			}
			return false
		}
	}

	if len(p.And) > 0 {
		subs := make([]func(map[string]any) bool, len(p.And))
		for i, sub := range p.And {
			subs[i] = sub.bind(s)
		}
		return func(row map[string]any) bool {
			for _, f := range subs {
				if !f(row) {
					return false
				}
			}
			return true
		}
	}

	if len(p.Or) > 0 {
		subs := make([]func(map[string]any) bool, len(p.Or))
		for i, sub := range p.Or {
			subs[i] = sub.bind(s)
		}
		return func(row map[string]any) bool {
			for _, f := range subs {
				if f(row) {
					return true
				}
			}
			return false
		}
	}

	sub := p.Not.bind(s)
	return func(row map[string]any) bool { return !sub(row) }
}
