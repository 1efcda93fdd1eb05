package chunk

import (
	"fmt"

	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

// AggregatorStateSerializer moves one accumulator in and out of a slot of
// an aggregator state block.
type AggregatorStateSerializer[S any] interface {
	// Size is the number of bytes Serialize writes.
	Size() int
	Serialize(state S, serial util.Serialize) error
	Deserialize(state S, deserial util.Deserialize) error
}

// AggregatorStateVector converts accumulators to and from
// ET_AGGREGATOR_STATE blocks. It holds no data itself; every item of an
// encoded block has the same width, the producer's size hint.
type AggregatorStateVector[S any] struct {
	Kind       string
	Serializer AggregatorStateSerializer[S]
}

func NewAggregatorStateVector[S any](kind string, serializer AggregatorStateSerializer[S]) AggregatorStateVector[S] {
	return AggregatorStateVector[S]{
		Kind:       kind,
		Serializer: serializer,
	}
}

// Encode snapshots states into one block, itemSize bytes per state.
func (sv AggregatorStateVector[S]) Encode(itemSize int, states ...S) *Block {
	util.AssertFunc(itemSize >= sv.Serializer.Size())
	data := util.GAlloc.Alloc(itemSize * len(states))
	serial := util.NewBufferSerialize(itemSize)
	for i, state := range states {
		serial.Reset()
		err := sv.Serializer.Serialize(state, serial)
		if err != nil {
			panic(err)
		}
		util.AssertFunc(len(serial.Bytes()) <= itemSize)
		copy(data[i*itemSize:(i+1)*itemSize], serial.Bytes())
	}
	vec := &Vector{
		_Typ:      common.ET_AGGREGATOR_STATE,
		_Count:    len(states),
		_ItemSize: itemSize,
		_Kind:     sv.Kind,
		Data:      data,
	}
	return vec.AsBlock()
}

// Check fails unless block is a state block produced by the same kind of
// accumulator.
func (sv AggregatorStateVector[S]) Check(block *Block) error {
	vec := block.AsVector()
	if vec == nil || vec.Typ() != common.ET_AGGREGATOR_STATE {
		return fmt.Errorf("expected aggregator state block, got %s", block)
	}
	if vec.Kind() != sv.Kind {
		return fmt.Errorf("expected aggregator state of %s, got %s", sv.Kind, vec.Kind())
	}
	if vec.ItemSize() < sv.Serializer.Size() {
		return fmt.Errorf("aggregator state item of %d bytes is smaller than %d", vec.ItemSize(), sv.Serializer.Size())
	}
	return nil
}

// Decode overwrites state with the accumulator stored at pos. The block
// must have passed Check.
func (sv AggregatorStateVector[S]) Decode(block *Block, pos int, state S) error {
	vec := block.AsVector()
	return sv.Serializer.Deserialize(state, util.NewBufferDeserialize(vec.GetItem(pos)))
}
