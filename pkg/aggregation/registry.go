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
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/daviszhen/aggr/pkg/common"
)

// AggregatorFunctionFactory creates fresh functions of one aggregate over
// one input type.
type AggregatorFunctionFactory struct {
	Name       string
	InputType  common.ElementType
	ResultType common.ElementType
	create     func(channel int) AggregatorFunction
}

func NewAggregatorFunctionFactory[S any, InputT common.Numeric, ResultT common.Numeric](
	name string,
	newOp func() AggrOp[S, InputT, ResultT],
) *AggregatorFunctionFactory {
	op := newOp()
	return &AggregatorFunctionFactory{
		Name:       name,
		InputType:  op.InputType(),
		ResultType: op.ResultType(),
		create: func(channel int) AggregatorFunction {
			return NewUnaryAggregatorFunction[S, InputT, ResultT](channel, newOp())
		},
	}
}

// Create binds a new function to channel, or to no channel when channel
// is -1.
func (f *AggregatorFunctionFactory) Create(channel int) AggregatorFunction {
	return f.create(channel)
}

// Key is name/type, e.g. sum/int.
func (f *AggregatorFunctionFactory) Key() string {
	return factoryKey(f.Name, f.InputType)
}

func (f *AggregatorFunctionFactory) String() string {
	return fmt.Sprintf("%s(%s) -> %s", f.Name, f.InputType, f.ResultType)
}

func factoryKey(name string, typ common.ElementType) string {
	return strings.ToLower(name) + "/" + strings.ToLower(typ.String())
}

var gFactories sync.Map

func init() {
	RegisterFactory(NewAggregatorFunctionFactory[*LongState, int32, int64]("sum",
		func() AggrOp[*LongState, int32, int64] {
			return SumIntOp{}
		}))
	RegisterFactory(NewAggregatorFunctionFactory[*LongState, int64, int64]("sum",
		func() AggrOp[*LongState, int64, int64] {
			return SumLongOp{}
		}))
	RegisterFactory(NewAggregatorFunctionFactory[*SumState, float64, float64]("sum",
		func() AggrOp[*SumState, float64, float64] {
			return SumDoubleOp{}
		}))
}

// RegisterFactory adds f, replacing any factory with the same key.
func RegisterFactory(f *AggregatorFunctionFactory) {
	gFactories.Store(f.Key(), f)
}

func LookupFactory(name string, typ common.ElementType) (*AggregatorFunctionFactory, error) {
	val, ok := gFactories.Load(factoryKey(name, typ))
	if !ok {
		return nil, fmt.Errorf("no aggregate %s over %s", name, typ)
	}
	return val.(*AggregatorFunctionFactory), nil
}

// Factories lists the registered factories ordered by key.
func Factories() []*AggregatorFunctionFactory {
	ret := make([]*AggregatorFunctionFactory, 0)
	gFactories.Range(func(_, val any) bool {
		ret = append(ret, val.(*AggregatorFunctionFactory))
		return true
	})
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Key() < ret[j].Key()
	})
	return ret
}
