package ir

import (
	"fmt"

	"fortio.org/safecast"

	"cinder/internal/source"
)

// Context owns every function, block, value and aggregate of one
// compilation unit. It is created per compilation and discarded after
// bytecode emission. Index 0 of every arena is a reserved sentinel so the
// zero ID is always invalid, matching the rest of the compiler.
type Context struct {
	funcs  []Function
	blocks []Block
	values []Value
	aggs   []Aggregate

	// constPool dedups constants by structural identity.
	constPool map[string]ValueID
	// aggPool dedups aggregate shapes by structural identity.
	aggPool map[string]AggregateID
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{
		funcs:     make([]Function, 1, 16),
		blocks:    make([]Block, 1, 64),
		values:    make([]Value, 1, 256),
		aggs:      make([]Aggregate, 1, 16),
		constPool: make(map[string]ValueID),
		aggPool:   make(map[string]AggregateID),
	}
}

// Func returns the function for id, or nil for an invalid ID.
func (c *Context) Func(id FuncID) *Function {
	if !id.IsValid() || int(id) >= len(c.funcs) {
		return nil
	}
	return &c.funcs[id]
}

// Block returns the block for id, or nil for an invalid ID.
func (c *Context) Block(id BlockID) *Block {
	if !id.IsValid() || int(id) >= len(c.blocks) {
		return nil
	}
	return &c.blocks[id]
}

// Value returns the value for id, or nil for an invalid ID.
func (c *Context) Value(id ValueID) *Value {
	if !id.IsValid() || int(id) >= len(c.values) {
		return nil
	}
	return &c.values[id]
}

// Aggregate returns the aggregate shape for id, or nil for an invalid ID.
func (c *Context) Aggregate(id AggregateID) *Aggregate {
	if !id.IsValid() || int(id) >= len(c.aggs) {
		return nil
	}
	return &c.aggs[id]
}

// NumFuncs reports the number of functions excluding the sentinel.
func (c *Context) NumFuncs() int { return len(c.funcs) - 1 }

// NumAggregates reports the number of interned aggregate shapes.
func (c *Context) NumAggregates() int { return len(c.aggs) - 1 }

// FuncIDs returns every valid function ID in creation order.
func (c *Context) FuncIDs() []FuncID {
	out := make([]FuncID, 0, len(c.funcs)-1)
	for i := 1; i < len(c.funcs); i++ {
		out = append(out, FuncID(i)) //nolint:gosec // G115: bounded by arena length
	}
	return out
}

// NewFunc allocates a function in the arena and returns its ID.
func (c *Context) NewFunc(name string, span source.Span) FuncID {
	n, err := safecast.Conv[uint32](len(c.funcs))
	if err != nil {
		panic(fmt.Errorf("function arena overflow: %w", err))
	}
	id := FuncID(n)
	c.funcs = append(c.funcs, Function{ID: id, Name: name, Span: span})
	return id
}

// NewBlock allocates a block owned by fn with the given label and appends
// it to the function's block list.
func (c *Context) NewBlock(fn FuncID, label string) BlockID {
	n, err := safecast.Conv[uint32](len(c.blocks))
	if err != nil {
		panic(fmt.Errorf("block arena overflow: %w", err))
	}
	id := BlockID(n)
	c.blocks = append(c.blocks, Block{ID: id, Func: fn, Label: label})
	if f := c.Func(fn); f != nil {
		f.Blocks = append(f.Blocks, id)
		if !f.Entry.IsValid() {
			f.Entry = id
		}
	}
	return id
}

// AppendInstr allocates an instruction-result value inside block and
// appends it to the block's instruction list.
func (c *Context) AppendInstr(block BlockID, instr Instruction, typ TypeRef, span source.Span) ValueID {
	n, err := safecast.Conv[uint32](len(c.values))
	if err != nil {
		panic(fmt.Errorf("value arena overflow: %w", err))
	}
	id := ValueID(n)
	c.values = append(c.values, Value{
		ID:    id,
		Kind:  ValueInstr,
		Type:  typ,
		Span:  span,
		Block: block,
		Instr: instr,
	})
	if b := c.Block(block); b != nil {
		b.Instrs = append(b.Instrs, id)
	}
	return id
}

// AddConstant interns a constant value. Structurally identical constants
// share one ValueID: insertion is idempotent.
func (c *Context) AddConstant(k Constant) ValueID {
	key := k.Key()
	if id, ok := c.constPool[key]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(c.values))
	if err != nil {
		panic(fmt.Errorf("value arena overflow: %w", err))
	}
	id := ValueID(n)
	c.values = append(c.values, Value{
		ID:    id,
		Kind:  ValueConstant,
		Type:  k.Type,
		Const: k,
	})
	c.constPool[key] = id
	return id
}

// InternAggregate registers an aggregate shape and returns its ID.
// A shape that reaches itself through its field types is rejected:
// recursive aggregates would make Undef expansion and size computation
// diverge, so they must never enter the arena.
func (c *Context) InternAggregate(a Aggregate) (AggregateID, error) {
	key := a.key()
	if id, ok := c.aggPool[key]; ok {
		return id, nil
	}
	n, err := safecast.Conv[uint32](len(c.aggs))
	if err != nil {
		panic(fmt.Errorf("aggregate arena overflow: %w", err))
	}
	id := AggregateID(n)
	if err := c.checkAcyclic(&a, id, make(map[AggregateID]bool)); err != nil {
		return NoAggregateID, err
	}
	c.aggs = append(c.aggs, a)
	c.aggPool[key] = id
	return id, nil
}

// checkAcyclic walks every aggregate reachable from a. Referenced shapes
// are already interned and interning rejects cycles, so the only edge
// that can close a cycle points back at the shape being interned now.
// visited dedups shared subtrees; reaching the same interned shape twice
// is ordinary diamond sharing, not recursion.
func (c *Context) checkAcyclic(a *Aggregate, self AggregateID, visited map[AggregateID]bool) error {
	refs := a.Fields
	if a.Kind == AggregateArray {
		refs = []TypeRef{a.Elem}
	}
	for _, t := range refs {
		if t.Kind != TypeAggregate {
			continue
		}
		if t.Agg == self {
			return fmt.Errorf("recursive aggregate type (via agg%d)", t.Agg)
		}
		if visited[t.Agg] {
			continue
		}
		visited[t.Agg] = true
		inner := c.Aggregate(t.Agg)
		if inner == nil {
			return fmt.Errorf("aggregate references unknown shape agg%d", t.Agg)
		}
		if err := c.checkAcyclic(inner, self, visited); err != nil {
			return err
		}
	}
	return nil
}
