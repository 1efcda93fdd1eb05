package aggregation

import (
	"math"

	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

// LongState is a running int64 total.
type LongState struct {
	value int64
}

func NewLongState(init int64) *LongState {
	return &LongState{value: init}
}

func (s *LongState) LongValue() int64 {
	return s.value
}

func (s *LongState) SetLongValue(v int64) {
	s.value = v
}

func (s *LongState) EstimatedSize() int {
	return common.LongSize
}

var _ chunk.AggregatorStateSerializer[*LongState] = LongStateSerializer{}

type LongStateSerializer struct{}

func (LongStateSerializer) Size() int {
	return common.LongSize
}

func (LongStateSerializer) Serialize(state *LongState, serial util.Serialize) error {
	return util.Write[int64](state.value, serial)
}

func (LongStateSerializer) Deserialize(state *LongState, deserial util.Deserialize) error {
	return util.Read[int64](&state.value, deserial)
}

// SumState is a compensated float64 total: value plus the running error
// term delta.
type SumState struct {
	value float64
	delta float64
}

func NewSumState(init float64) *SumState {
	return &SumState{value: init}
}

func (s *SumState) Add(v float64) {
	s.AddWithDelta(v, 0)
}

// AddWithDelta adds v whose own pending error is delta. Once the total
// stops being finite the error term is no longer tracked.
func (s *SumState) AddWithDelta(v, delta float64) {
	if !isFinite(v) {
		s.value = v + s.value
	}
	if isFinite(s.value) {
		corrected := v + (s.delta + delta)
		updated := s.value + corrected
		s.delta = corrected - (updated - s.value)
		s.value = updated
	}
}

func (s *SumState) Value() float64 {
	return s.value
}

func (s *SumState) Delta() float64 {
	return s.delta
}

func (s *SumState) EstimatedSize() int {
	return 2 * common.DoubleSize
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

var _ chunk.AggregatorStateSerializer[*SumState] = SumStateSerializer{}

type SumStateSerializer struct{}

func (SumStateSerializer) Size() int {
	return 2 * common.DoubleSize
}

func (SumStateSerializer) Serialize(state *SumState, serial util.Serialize) error {
	err := util.Write[float64](state.value, serial)
	if err != nil {
		return err
	}
	return util.Write[float64](state.delta, serial)
}

func (SumStateSerializer) Deserialize(state *SumState, deserial util.Deserialize) error {
	err := util.Read[float64](&state.value, deserial)
	if err != nil {
		return err
	}
	return util.Read[float64](&state.delta, deserial)
}
