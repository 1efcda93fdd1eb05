package aggregation

import (
	"strings"

	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/util"
)

type operatorState int

const (
	opNeedsInput operatorState = iota
	opHasOutput
	opFinished
)

// AggregationOperator feeds every page to all of its aggregators and
// emits a single one-row page, one block per aggregator, after Finish.
type AggregationOperator struct {
	_aggregators []*Aggregator
	_state       operatorState
	_output      *chunk.Page
}

func NewAggregationOperator(aggregators ...*Aggregator) *AggregationOperator {
	util.AssertFunc(len(aggregators) > 0)
	return &AggregationOperator{
		_aggregators: aggregators,
	}
}

func (op *AggregationOperator) NeedsInput() bool {
	return op._state == opNeedsInput
}

func (op *AggregationOperator) AddInput(page *chunk.Page) {
	if op._state != opNeedsInput {
		contractViolation("operator is already finishing")
	}
	util.AssertFunc(page != nil)
	for _, aggr := range op._aggregators {
		aggr.ProcessPage(page)
	}
}

// Finish evaluates the aggregators. Later calls do nothing.
func (op *AggregationOperator) Finish() {
	if op._state != opNeedsInput {
		return
	}
	blocks := make([]*chunk.Block, len(op._aggregators))
	for i, aggr := range op._aggregators {
		blocks[i] = aggr.Evaluate()
	}
	op._output = chunk.NewPage(blocks...)
	op._state = opHasOutput
}

func (op *AggregationOperator) IsFinished() bool {
	return op._state == opFinished
}

// GetOutput hands out the result page once, nil otherwise.
func (op *AggregationOperator) GetOutput() *chunk.Page {
	if op._state != opHasOutput {
		return nil
	}
	op._state = opFinished
	ret := op._output
	op._output = nil
	return ret
}

func (op *AggregationOperator) String() string {
	sb := strings.Builder{}
	sb.WriteString("AggregationOperator[aggregators=[")
	for i, aggr := range op._aggregators {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(aggr.String())
	}
	sb.WriteString("]]")
	return sb.String()
}
