package aggregation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/huandu/go-clone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

func catchPanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = util.ConvertPanicError(r)
		}
	}()
	fn()
	return nil
}

func nullableIntPage(values ...*int32) *chunk.Page {
	bb := chunk.NewBlockBuilder[int32](len(values))
	for _, v := range values {
		if v == nil {
			bb.AppendNull()
		} else {
			bb.Append(*v)
		}
	}
	return chunk.NewPage(bb.Build())
}

func ptr[T any](v T) *T {
	return &v
}

func finalLong(t *testing.T, fun AggregatorFunction) int64 {
	b := fun.EvaluateFinal()
	require.Equal(t, common.ET_LONG, b.ElementType())
	require.Equal(t, 1, b.PositionCount())
	return b.GetLong(0)
}

func finalDouble(t *testing.T, fun AggregatorFunction) float64 {
	b := fun.EvaluateFinal()
	require.Equal(t, common.ET_DOUBLE, b.ElementType())
	require.Equal(t, 1, b.PositionCount())
	return b.GetDouble(0)
}

func Test_sumIntWithNulls(t *testing.T) {
	fun := NewSumIntAggregatorFunction(0)
	fun.AddRawInput(nullableIntPage(ptr[int32](3), nil, ptr[int32](7), ptr[int32](-2), nil))
	assert.Equal(t, int64(8), finalLong(t, fun))
}

func Test_sumIntMergeTwoPartitions(t *testing.T) {
	left := NewSumIntAggregatorFunction(0)
	left.AddRawInput(chunk.NewPage(chunk.NewIntVector(1, 2, 5).AsBlock()))
	right := NewSumIntAggregatorFunction(0)
	right.AddRawInput(chunk.NewPage(chunk.NewIntVector(15).AsBlock()))
	leftState := left.EvaluateIntermediate()
	rightState := right.EvaluateIntermediate()

	for _, order := range [][]*chunk.Block{{leftState, rightState}, {rightState, leftState}} {
		merge := NewSumIntAggregatorFunction(-1)
		for _, b := range order {
			merge.AddIntermediateInput(b)
		}
		assert.Equal(t, int64(23), finalLong(t, merge))
	}
}

func Test_sumIntWidens(t *testing.T) {
	fun := NewSumIntAggregatorFunction(0)
	vec := chunk.NewFlatVector(common.ET_INT, 4)
	data := chunk.GetSliceInVector[int32](vec)
	for i := range data {
		data[i] = 1<<31 - 1
	}
	fun.AddRawInput(chunk.NewPage(vec.AsBlock()))
	assert.Equal(t, int64(4)*(1<<31-1), finalLong(t, fun))
}

func Test_denseAndSparseAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ints := make([]int32, 3000)
	doubles := make([]float64, 3000)
	for i := range ints {
		ints[i] = rng.Int31n(20000) - 10000
		doubles[i] = rng.Float64()*200 - 100
	}

	denseInt := NewSumIntAggregatorFunction(0)
	denseInt.AddRawInput(chunk.NewPage(chunk.NewIntVector(ints...).AsBlock()))
	sparseInt := NewSumIntAggregatorFunction(0)
	sparseInt.AddRawInput(chunk.NewPage(chunk.NewNullableBlock[int32](ints, nil)))
	assert.Equal(t, finalLong(t, denseInt), finalLong(t, sparseInt))

	longs := make([]int64, len(ints))
	for i, v := range ints {
		longs[i] = int64(v) << 20
	}
	denseLong := NewSumLongAggregatorFunction(0)
	denseLong.AddRawInput(chunk.NewPage(chunk.NewLongVector(longs...).AsBlock()))
	sparseLong := NewSumLongAggregatorFunction(0)
	sparseLong.AddRawInput(chunk.NewPage(chunk.NewNullableBlock[int64](longs, nil)))
	assert.Equal(t, finalLong(t, denseLong), finalLong(t, sparseLong))
	assert.Equal(t, finalLong(t, denseInt)<<20, finalLong(t, denseLong))

	denseDouble := NewSumDoubleAggregatorFunction(0)
	denseDouble.AddRawInput(chunk.NewPage(chunk.NewDoubleVector(doubles...).AsBlock()))
	sparseDouble := NewSumDoubleAggregatorFunction(0)
	sparseDouble.AddRawInput(chunk.NewPage(chunk.NewNullableBlock[float64](doubles, nil)))
	assert.Equal(t, finalDouble(t, denseDouble), finalDouble(t, sparseDouble))

	// nulls are skipped: the sparse column with extra null slots sums like
	// the dense column of its present values
	bb := chunk.NewBlockBuilder[int32](2 * len(ints))
	for _, v := range ints {
		bb.AppendNull()
		bb.Append(v)
	}
	withNulls := NewSumIntAggregatorFunction(0)
	withNulls.AddRawInput(chunk.NewPage(bb.Build()))
	assert.Equal(t, finalLong(t, denseInt), finalLong(t, withNulls))
}

func Test_emptyInput(t *testing.T) {
	intFun := NewSumIntAggregatorFunction(0)
	assert.Equal(t, int64(0), finalLong(t, intFun))
	doubleFun := NewSumDoubleAggregatorFunction(0)
	assert.Equal(t, 0.0, finalDouble(t, doubleFun))

	merge := NewSumIntAggregatorFunction(-1)
	assert.Equal(t, int64(0), finalLong(t, merge))

	zeroRows := NewSumIntAggregatorFunction(0)
	zeroRows.AddRawInput(chunk.NewPage(chunk.NewIntRangeVector(0, 0).AsBlock()))
	assert.Equal(t, int64(0), finalLong(t, zeroRows))
}

func Test_allNullInput(t *testing.T) {
	constNull := NewSumIntAggregatorFunction(0)
	constNull.AddRawInput(chunk.NewPage(chunk.NewConstantNullBlock(5)))
	assert.Equal(t, int64(0), finalLong(t, constNull))

	allNull := NewSumDoubleAggregatorFunction(1)
	page := chunk.NewPage(
		chunk.NewIntVector(1, 2, 3).AsBlock(),
		chunk.NewBlockBuilder[float64](3).AppendNull().AppendNull().AppendNull().Build(),
	)
	allNull.AddRawInput(page)
	assert.Equal(t, 0.0, finalDouble(t, allNull))
}

func Test_channelSelection(t *testing.T) {
	page := chunk.NewPage(
		chunk.NewIntVector(1, 2, 3).AsBlock(),
		chunk.NewIntVector(10, 20, 30).AsBlock(),
		chunk.NewDoubleVector(0.5, 0.25, 0.25).AsBlock(),
	)
	first := NewSumIntAggregatorFunction(0)
	second := NewSumIntAggregatorFunction(1)
	third := NewSumDoubleAggregatorFunction(2)
	first.AddRawInput(page)
	second.AddRawInput(page)
	third.AddRawInput(page)
	assert.Equal(t, int64(6), finalLong(t, first))
	assert.Equal(t, int64(60), finalLong(t, second))
	assert.Equal(t, 1.0, finalDouble(t, third))
}

func splitIntoPages(rng *rand.Rand, values []*int32, k int) []*chunk.Page {
	builders := make([]*chunk.BlockBuilder[int32], k)
	for i := range builders {
		builders[i] = chunk.NewBlockBuilder[int32](len(values) / k)
	}
	for _, v := range values {
		bb := builders[rng.Intn(k)]
		if v == nil {
			bb.AppendNull()
		} else {
			bb.Append(*v)
		}
	}
	pages := make([]*chunk.Page, k)
	for i, bb := range builders {
		pages[i] = chunk.NewPage(bb.Build())
	}
	return pages
}

func Test_sumIntPartitionsMergeInAnyOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]*int32, 5000)
	for i := range values {
		if rng.Intn(10) == 0 {
			continue
		}
		values[i] = ptr(rng.Int31())
	}
	single := NewSumIntAggregatorFunction(0)
	single.AddRawInput(nullableIntPage(values...))
	expect := finalLong(t, single)

	for _, k := range []int{1, 2, 3, 7, 16} {
		pages := splitIntoPages(rng, values, k)
		states := make([]*chunk.Block, 0, k)
		for _, page := range pages {
			part := NewSumIntAggregatorFunction(0)
			part.AddRawInput(page)
			states = append(states, part.EvaluateIntermediate())
		}
		rng.Shuffle(len(states), func(i, j int) {
			states[i], states[j] = states[j], states[i]
		})
		merge := NewSumIntAggregatorFunction(-1)
		for _, state := range states {
			merge.AddIntermediateInput(state)
		}
		assert.Equal(t, expect, finalLong(t, merge), "k=%d", k)

		// two merge levels
		if k >= 2 {
			lower := NewSumIntAggregatorFunction(-1)
			for _, state := range states[:k/2] {
				lower.AddIntermediateInput(state)
			}
			upper := NewSumIntAggregatorFunction(-1)
			upper.AddIntermediateInput(lower.EvaluateIntermediate())
			for _, state := range states[k/2:] {
				upper.AddIntermediateInput(state)
			}
			assert.Equal(t, expect, finalLong(t, upper), "k=%d", k)
		}
	}
}

func Test_sumLongPartitionsMergeInAnyOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	bb := chunk.NewBlockBuilder[int64](6000)
	for i := 0; i < 6000; i++ {
		if rng.Intn(8) == 0 {
			bb.AppendNull()
		} else {
			bb.Append(rng.Int63n(1<<40) - 1<<39)
		}
	}
	block := bb.Build()
	single := NewSumLongAggregatorFunction(0)
	single.AddRawInput(chunk.NewPage(block))
	expect := finalLong(t, single)

	for _, k := range []int{2, 4, 9} {
		builders := make([]*chunk.BlockBuilder[int64], k)
		for i := range builders {
			builders[i] = chunk.NewBlockBuilder[int64](0)
		}
		for i := 0; i < block.PositionCount(); i++ {
			part := builders[rng.Intn(k)]
			if block.IsNull(i) {
				part.AppendNull()
			} else {
				part.Append(block.GetLong(i))
			}
		}
		states := make([]*chunk.Block, k)
		for i, part := range builders {
			fun := NewSumLongAggregatorFunction(0)
			fun.AddRawInput(chunk.NewPage(part.Build()))
			states[i] = fun.EvaluateIntermediate()
		}
		merge := NewSumLongAggregatorFunction(-1)
		for _, i := range rng.Perm(k) {
			merge.AddIntermediateInput(states[i])
		}
		assert.Equal(t, expect, finalLong(t, merge), "k=%d", k)
	}
}

func Test_sumDoublePartitionsMergeInAnyOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	values := make([]float64, 4000)
	for i := range values {
		values[i] = rng.NormFloat64() * 1e6
	}
	single := NewSumDoubleAggregatorFunction(0)
	single.AddRawInput(chunk.NewPage(chunk.NewDoubleVector(values...).AsBlock()))
	expect := finalDouble(t, single)

	for _, k := range []int{2, 5, 11} {
		parts := make([]*UnaryAggregatorFunction[*SumState, float64, float64], k)
		for i := range parts {
			parts[i] = NewSumDoubleAggregatorFunction(0)
		}
		for start := 0; start < len(values); start += 100 {
			page := chunk.NewPage(chunk.NewDoubleVector(values[start : start+100]...).AsBlock())
			parts[rng.Intn(k)].AddRawInput(page)
		}
		merge := NewSumDoubleAggregatorFunction(-1)
		for _, i := range rng.Perm(k) {
			merge.AddIntermediateInput(parts[i].EvaluateIntermediate())
		}
		assert.InDelta(t, expect, finalDouble(t, merge), 1e-4, "k=%d", k)
	}
}

func Test_compensatedSum(t *testing.T) {
	values := make([]float64, 1000000)
	for i := range values {
		values[i] = 0.1
	}
	fun := NewSumDoubleAggregatorFunction(0)
	fun.AddRawInput(chunk.NewPage(chunk.NewDoubleVector(values[:10]...).AsBlock()))
	assert.Equal(t, 1.0, finalDouble(t, fun))

	fun = NewSumDoubleAggregatorFunction(0)
	fun.AddRawInput(chunk.NewPage(chunk.NewDoubleVector(values...).AsBlock()))
	assert.Equal(t, 100000.0, finalDouble(t, fun))
}

func Test_sumStateNonFinite(t *testing.T) {
	s := NewSumState(0)
	s.Add(1)
	s.Add(math.Inf(1))
	assert.True(t, s.Value() > 0 && !isFinite(s.Value()))
	s.Add(1)
	assert.False(t, isFinite(s.Value()))
	s.Add(-math.Inf(1))
	assert.False(t, isFinite(s.Value()))
}

func Test_multiPositionStateBlock(t *testing.T) {
	sv := chunk.NewAggregatorStateVector[*LongState]("SumInt", LongStateSerializer{})
	block := sv.Encode(common.LongSize, NewLongState(1), NewLongState(2), NewLongState(39))
	merge := NewSumIntAggregatorFunction(-1)
	merge.AddIntermediateInput(block)
	assert.Equal(t, int64(42), finalLong(t, merge))
}

func Test_evaluateIntermediateBlock(t *testing.T) {
	fun := NewSumDoubleAggregatorFunction(0)
	fun.AddRawInput(chunk.NewPage(chunk.NewDoubleVector(1.25).AsBlock()))
	b := fun.EvaluateIntermediate()
	assert.Equal(t, common.ET_AGGREGATOR_STATE, b.ElementType())
	assert.Equal(t, 1, b.PositionCount())
	require.NotNil(t, b.AsVector())
	assert.Equal(t, "SumDouble", b.AsVector().Kind())
	assert.Equal(t, 16, b.AsVector().ItemSize())
}

func Test_evaluationDoesNotMutateState(t *testing.T) {
	fun := NewSumDoubleAggregatorFunction(0)
	fun.AddRawInput(chunk.NewPage(chunk.NewDoubleVector(0.1, 0.2, 0.3, 1e10, -1e10).AsBlock()))
	snapshot := clone.Clone(fun.State()).(*SumState)

	first := fun.EvaluateFinal().GetDouble(0)
	fun.EvaluateIntermediate()
	second := fun.EvaluateFinal().GetDouble(0)
	fun.EvaluateIntermediate()

	assert.Equal(t, snapshot, fun.State())
	assert.Equal(t, first, second)

	intFun := NewSumIntAggregatorFunction(-1)
	intFun.AddIntermediateInput(NewSumIntAggregatorFunction(0).EvaluateIntermediate())
	intSnapshot := clone.Clone(intFun.State()).(*LongState)
	intFun.EvaluateIntermediate()
	intFun.EvaluateFinal()
	assert.Equal(t, intSnapshot, intFun.State())
}

func Test_contractViolations(t *testing.T) {
	rawPage := chunk.NewPage(chunk.NewIntVector(1, 2).AsBlock())
	intState := NewSumIntAggregatorFunction(0).EvaluateIntermediate()
	doubleState := NewSumDoubleAggregatorFunction(0).EvaluateIntermediate()

	cases := []struct {
		name string
		fn   func()
	}{
		{"raw input on merge-only", func() {
			NewSumIntAggregatorFunction(-1).AddRawInput(rawPage)
		}},
		{"intermediate input on raw input", func() {
			NewSumIntAggregatorFunction(0).AddIntermediateInput(intState)
		}},
		{"plain block as state", func() {
			NewSumIntAggregatorFunction(-1).AddIntermediateInput(chunk.NewLongVector(1).AsBlock())
		}},
		{"state of another aggregate", func() {
			NewSumIntAggregatorFunction(-1).AddIntermediateInput(doubleState)
		}},
		{"int state into long sum", func() {
			NewSumLongAggregatorFunction(-1).AddIntermediateInput(intState)
		}},
		{"int column into long sum", func() {
			NewSumLongAggregatorFunction(0).AddRawInput(rawPage)
		}},
		{"wrong input type", func() {
			NewSumDoubleAggregatorFunction(0).AddRawInput(rawPage)
		}},
		{"raw input after evaluation", func() {
			fun := NewSumIntAggregatorFunction(0)
			fun.AddRawInput(rawPage)
			fun.EvaluateFinal()
			fun.AddRawInput(rawPage)
		}},
		{"intermediate input after evaluation", func() {
			fun := NewSumIntAggregatorFunction(-1)
			fun.EvaluateIntermediate()
			fun.AddIntermediateInput(intState)
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := catchPanic(c.fn)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrContractViolation)
			// deterministic
			assert.ErrorIs(t, catchPanic(c.fn), ErrContractViolation)
		})
	}

	assert.Panics(t, func() {
		NewSumIntAggregatorFunction(1).AddRawInput(rawPage)
	})
}

func Test_functionString(t *testing.T) {
	assert.Equal(t, "SumIntAggregatorFunction[channel=0]", NewSumIntAggregatorFunction(0).String())
	assert.Equal(t, "SumDoubleAggregatorFunction[channel=-1]", NewSumDoubleAggregatorFunction(-1).String())
	assert.Equal(t, "SumLongAggregatorFunction[channel=3]", NewSumLongAggregatorFunction(3).String())
}

func Test_ownerCheck(t *testing.T) {
	util.EnableOwnerCheck(true)
	defer util.EnableOwnerCheck(false)

	fun := NewSumIntAggregatorFunction(0)
	page := chunk.NewPage(chunk.NewIntVector(1).AsBlock())
	fun.AddRawInput(page)

	eg := errgroup.Group{}
	eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = util.ConvertPanicError(r)
			}
		}()
		fun.AddRawInput(page)
		return nil
	})
	assert.Error(t, eg.Wait())

	// independent instances on independent goroutines are fine
	var parallel errgroup.Group
	for i := 0; i < 4; i++ {
		parallel.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = util.ConvertPanicError(r)
				}
			}()
			own := NewSumIntAggregatorFunction(0)
			own.AddRawInput(page)
			if own.EvaluateFinal().GetLong(0) != 1 {
				panic("wrong sum")
			}
			return nil
		})
	}
	assert.NoError(t, parallel.Wait())
}
