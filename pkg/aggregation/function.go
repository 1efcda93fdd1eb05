package aggregation

import (
	"fmt"

	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

// AggregatorFunction folds one column into one accumulator.
//
// A function created with a channel >= 0 reads raw pages from that
// channel. A function created with channel -1 only merges intermediate
// state blocks. Either kind may be evaluated any number of times but
// accepts no input after its first evaluation. An instance must stay on
// one goroutine.
type AggregatorFunction interface {
	AddRawInput(page *chunk.Page)
	AddIntermediateInput(block *chunk.Block)
	// EvaluateIntermediate returns a one position ET_AGGREGATOR_STATE block.
	EvaluateIntermediate() *chunk.Block
	// EvaluateFinal returns a one position block of the result type.
	EvaluateFinal() *chunk.Block
	String() string
}

type phase int

const (
	phaseUnstarted phase = iota
	phaseAccumulating
	phaseEvaluated
)

var _ AggregatorFunction = new(UnaryAggregatorFunction[*LongState, int32, int64])

// UnaryAggregatorFunction drives one AggrOp over one channel. The scan
// loops live here once for every numeric specialization.
type UnaryAggregatorFunction[S any, InputT common.Numeric, ResultT common.Numeric] struct {
	_channel int
	_state   S
	_op      AggrOp[S, InputT, ResultT]
	_codec   chunk.AggregatorStateVector[S]
	_phase   phase
	_owner   util.OwnerCheck
}

func NewUnaryAggregatorFunction[S any, InputT common.Numeric, ResultT common.Numeric](
	channel int,
	op AggrOp[S, InputT, ResultT],
) *UnaryAggregatorFunction[S, InputT, ResultT] {
	util.AssertFunc(channel >= -1)
	return &UnaryAggregatorFunction[S, InputT, ResultT]{
		_channel: channel,
		_state:   op.Init(),
		_op:      op,
		_codec:   chunk.NewAggregatorStateVector[S](op.Name(), op.Serializer()),
	}
}

func NewSumIntAggregatorFunction(channel int) *UnaryAggregatorFunction[*LongState, int32, int64] {
	return NewUnaryAggregatorFunction[*LongState, int32, int64](channel, SumIntOp{})
}

func NewSumLongAggregatorFunction(channel int) *UnaryAggregatorFunction[*LongState, int64, int64] {
	return NewUnaryAggregatorFunction[*LongState, int64, int64](channel, SumLongOp{})
}

func NewSumDoubleAggregatorFunction(channel int) *UnaryAggregatorFunction[*SumState, float64, float64] {
	return NewUnaryAggregatorFunction[*SumState, float64, float64](channel, SumDoubleOp{})
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) Channel() int {
	return fun._channel
}

// State exposes the accumulator for inspection. Callers must not mutate it.
func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) State() S {
	return fun._state
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) startInput(what string) {
	fun._owner.Check(fun)
	if fun._phase == phaseEvaluated {
		contractViolation("%s after evaluation on %s", what, fun)
	}
	fun._phase = phaseAccumulating
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) AddRawInput(page *chunk.Page) {
	if fun._channel < 0 {
		contractViolation("raw input on merge-only %s", fun)
	}
	fun.startInput("raw input")
	block := page.GetBlock(fun._channel)
	typ := block.ElementType()
	if typ == common.ET_NULL {
		return
	}
	if typ != fun._op.InputType() {
		contractViolation("%s expects %s input, got %s", fun, fun._op.InputType(), block)
	}
	vec := block.AsVector()
	if vec != nil {
		fun.addRawVector(vec)
	} else {
		fun.addRawBlock(block)
	}
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) addRawVector(vec *chunk.Vector) {
	values := chunk.GetSliceInVector[InputT](vec)
	for i := 0; i < vec.PositionCount(); i++ {
		fun._op.Combine(fun._state, values[i])
	}
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) addRawBlock(block *chunk.Block) {
	values := chunk.GetSliceInBlock[InputT](block)
	for i := 0; i < block.TotalValueCount(); i++ {
		if block.IsNull(i) {
			continue
		}
		fun._op.Combine(fun._state, values[i])
	}
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) AddIntermediateInput(block *chunk.Block) {
	if fun._channel != -1 {
		contractViolation("intermediate input on raw input %s", fun)
	}
	fun.startInput("intermediate input")
	if err := fun._codec.Check(block); err != nil {
		contractViolation("expected AggregatorStateBlock, got: %s: %v", block, err)
	}
	scratch := fun._op.Init()
	for i := 0; i < block.PositionCount(); i++ {
		if err := fun._codec.Decode(block, i, scratch); err != nil {
			contractViolation("decode position %d of %s: %v", i, block, err)
		}
		fun._op.CombineStates(fun._state, scratch)
	}
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) EvaluateIntermediate() *chunk.Block {
	fun._owner.Check(fun)
	fun._phase = phaseEvaluated
	return fun._codec.Encode(fun._op.EstimatedSize(fun._state), fun._state)
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) EvaluateFinal() *chunk.Block {
	fun._owner.Check(fun)
	fun._phase = phaseEvaluated
	result := fun._op.EvaluateFinal(fun._state)
	return chunk.NewVectorFromSlice[ResultT]([]ResultT{result}).AsBlock()
}

func (fun *UnaryAggregatorFunction[S, InputT, ResultT]) String() string {
	return fmt.Sprintf("%sAggregatorFunction[channel=%d]", fun._op.Name(), fun._channel)
}
