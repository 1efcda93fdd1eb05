package aggregation

import (
	"fmt"

	"github.com/daviszhen/aggr/pkg/chunk"
)

// Aggregator pairs one function with a mode. In raw modes the function
// reads channel from every page; in merge modes channel holds the state
// block to merge.
type Aggregator struct {
	_fun     AggregatorFunction
	_mode    AggregatorMode
	_channel int
}

func NewAggregator(factory *AggregatorFunctionFactory, mode AggregatorMode, channel int) *Aggregator {
	var fun AggregatorFunction
	if mode.IsInputRaw() {
		fun = factory.Create(channel)
	} else {
		fun = factory.Create(-1)
	}
	return &Aggregator{
		_fun:     fun,
		_mode:    mode,
		_channel: channel,
	}
}

func (aggr *Aggregator) Mode() AggregatorMode {
	return aggr._mode
}

func (aggr *Aggregator) Function() AggregatorFunction {
	return aggr._fun
}

func (aggr *Aggregator) ProcessPage(page *chunk.Page) {
	if aggr._mode.IsInputRaw() {
		aggr._fun.AddRawInput(page)
	} else {
		aggr._fun.AddIntermediateInput(page.GetBlock(aggr._channel))
	}
}

func (aggr *Aggregator) Evaluate() *chunk.Block {
	if aggr._mode.IsOutputPartial() {
		return aggr._fun.EvaluateIntermediate()
	}
	return aggr._fun.EvaluateFinal()
}

func (aggr *Aggregator) String() string {
	return fmt.Sprintf("Aggregator[aggregatorFunction=%s, mode=%s]", aggr._fun, aggr._mode)
}
