// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aggregation

import (
	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/common"
)

// AggrOp is the arithmetic of one aggregate for one input type. S is the
// accumulator, usually a pointer so that Combine can update it in place.
//
// CombineStates must be associative and commutative so that partial
// states computed on any split of the input merge into the same result.
// Floating point results may differ by rounding only.
type AggrOp[S any, InputT common.Numeric, ResultT common.Numeric] interface {
	// Name prefixes the function name, e.g. SumInt.
	Name() string
	InputType() common.ElementType
	ResultType() common.ElementType
	// Init returns the identity accumulator.
	Init() S
	Combine(state S, value InputT)
	CombineStates(target S, source S)
	EvaluateFinal(state S) ResultT
	// EstimatedSize sizes one slot of the intermediate state block.
	EstimatedSize(state S) int
	Serializer() chunk.AggregatorStateSerializer[S]
}

var _ AggrOp[*LongState, int32, int64] = SumIntOp{}

// SumIntOp sums int32 values into an int64 total.
type SumIntOp struct{}

func (SumIntOp) Name() string {
	return "SumInt"
}

func (SumIntOp) InputType() common.ElementType {
	return common.ET_INT
}

func (SumIntOp) ResultType() common.ElementType {
	return common.ET_LONG
}

func (SumIntOp) Init() *LongState {
	return NewLongState(0)
}

func (SumIntOp) Combine(state *LongState, value int32) {
	state.SetLongValue(state.LongValue() + int64(value))
}

func (SumIntOp) CombineStates(target *LongState, source *LongState) {
	target.SetLongValue(target.LongValue() + source.LongValue())
}

func (SumIntOp) EvaluateFinal(state *LongState) int64 {
	return state.LongValue()
}

func (SumIntOp) EstimatedSize(state *LongState) int {
	return state.EstimatedSize()
}

func (SumIntOp) Serializer() chunk.AggregatorStateSerializer[*LongState] {
	return LongStateSerializer{}
}

var _ AggrOp[*LongState, int64, int64] = SumLongOp{}

// SumLongOp sums int64 values. The total wraps on overflow.
type SumLongOp struct{}

func (SumLongOp) Name() string {
	return "SumLong"
}

func (SumLongOp) InputType() common.ElementType {
	return common.ET_LONG
}

func (SumLongOp) ResultType() common.ElementType {
	return common.ET_LONG
}

func (SumLongOp) Init() *LongState {
	return NewLongState(0)
}

func (SumLongOp) Combine(state *LongState, value int64) {
	state.SetLongValue(state.LongValue() + value)
}

func (SumLongOp) CombineStates(target *LongState, source *LongState) {
	target.SetLongValue(target.LongValue() + source.LongValue())
}

func (SumLongOp) EvaluateFinal(state *LongState) int64 {
	return state.LongValue()
}

func (SumLongOp) EstimatedSize(state *LongState) int {
	return state.EstimatedSize()
}

func (SumLongOp) Serializer() chunk.AggregatorStateSerializer[*LongState] {
	return LongStateSerializer{}
}

var _ AggrOp[*SumState, float64, float64] = SumDoubleOp{}

// SumDoubleOp sums float64 values with error compensation.
type SumDoubleOp struct{}

func (SumDoubleOp) Name() string {
	return "SumDouble"
}

func (SumDoubleOp) InputType() common.ElementType {
	return common.ET_DOUBLE
}

func (SumDoubleOp) ResultType() common.ElementType {
	return common.ET_DOUBLE
}

func (SumDoubleOp) Init() *SumState {
	return NewSumState(0)
}

func (SumDoubleOp) Combine(state *SumState, value float64) {
	state.Add(value)
}

func (SumDoubleOp) CombineStates(target *SumState, source *SumState) {
	target.AddWithDelta(source.value, source.delta)
}

func (SumDoubleOp) EvaluateFinal(state *SumState) float64 {
	return state.value
}

func (SumDoubleOp) EstimatedSize(state *SumState) int {
	return state.EstimatedSize()
}

func (SumDoubleOp) Serializer() chunk.AggregatorStateSerializer[*SumState] {
	return SumStateSerializer{}
}
