package ir

type (
	// FuncID indexes the Context function arena.
	FuncID uint32
	// BlockID indexes the Context block arena.
	BlockID uint32
	// ValueID indexes the Context value arena.
	ValueID uint32
	// AggregateID indexes the Context aggregate arena.
	AggregateID uint32
)

const (
	// NoFuncID is the reserved invalid function ID.
	NoFuncID FuncID = 0
	// NoBlockID is the reserved invalid block ID.
	NoBlockID BlockID = 0
	// NoValueID is the reserved invalid value ID.
	NoValueID ValueID = 0
	// NoAggregateID is the reserved invalid aggregate ID.
	NoAggregateID AggregateID = 0
)

func (id FuncID) IsValid() bool      { return id != NoFuncID }
func (id BlockID) IsValid() bool     { return id != NoBlockID }
func (id ValueID) IsValid() bool     { return id != NoValueID }
func (id AggregateID) IsValid() bool { return id != NoAggregateID }
