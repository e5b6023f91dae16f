package cache

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/smileynet/xiuxian/internal/game"
)

// Predicate is a compiled filter over an entity's JSON fields, for example
// `equipped`, `!equipped` or `growth_progress >= 100`.
type Predicate struct {
	src     string
	program *vm.Program
}

// Compile parses a predicate expression. Unknown field names evaluate to nil.
func Compile(src string) (*Predicate, error) {
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("cache: compiling predicate %q: %w", src, err)
	}
	return &Predicate{src: src, program: program}, nil
}

// String returns the source expression.
func (p *Predicate) String() string {
	return p.src
}

// Match evaluates the predicate against one entity.
func (p *Predicate) Match(e game.Entity) (bool, error) {
	out, err := expr.Run(p.program, game.Fields(e))
	if err != nil {
		return false, fmt.Errorf("cache: evaluating %q on %d: %w", p.src, e.EntityID(), err)
	}
	switch v := out.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("cache: predicate %q returned %T, want bool", p.src, out)
	}
}

// Filter keeps the entities matching p, preserving order.
func (p *Predicate) Filter(entities []game.Entity) ([]game.Entity, error) {
	out := make([]game.Entity, 0, len(entities))
	for _, e := range entities {
		ok, err := p.Match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Select derives a secondary index from the current snapshot of kind. The
// result is computed on every call and never stored.
func (s *Set) Select(kind game.Kind, predicate string) ([]game.Entity, error) {
	if _, ok := game.Describe(kind); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if predicate == "" {
		return s.List(kind), nil
	}
	p, err := Compile(predicate)
	if err != nil {
		return nil, err
	}
	return p.Filter(s.List(kind))
}
