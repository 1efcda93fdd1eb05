package chunk

import (
	"fmt"
	"strings"

	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

// BlockFormat is the physical layout of a Block.
type BlockFormat int

const (
	// BF_VECTOR wraps a dense Vector. No nulls.
	BF_VECTOR BlockFormat = iota
	// BF_NULLABLE stores one value slot per position plus a validity mask.
	// Slots of null positions hold unspecified bytes.
	BF_NULLABLE
	// BF_CONST_NULL has no values at all.
	BF_CONST_NULL
)

func (f BlockFormat) String() string {
	switch f {
	case BF_VECTOR:
		return "vector"
	case BF_NULLABLE:
		return "nullable"
	case BF_CONST_NULL:
		return "constant_null"
	}
	panic(fmt.Sprintf("usp %d", f))
}

// Block is a column of one Page.
type Block struct {
	_Format        BlockFormat
	_Typ           common.ElementType
	_PositionCount int
	Vec            *Vector
	Data           []byte
	Mask           *util.Bitmap
}

// NewNullableBlock takes ownership of values and mask. len(values) is the
// position count.
func NewNullableBlock[T common.Numeric](values []T, mask *util.Bitmap) *Block {
	typ := common.ElementTypeOf[T]()
	data := util.GAlloc.Alloc(len(values) * typ.Size())
	copy(util.ToSlice[T](data, typ.Size()), values)
	if mask == nil {
		mask = &util.Bitmap{}
	}
	if !mask.AllValid() {
		mask.Resize(len(mask.Bits)*8, len(values))
	}
	return &Block{
		_Format:        BF_NULLABLE,
		_Typ:           typ,
		_PositionCount: len(values),
		Data:           data,
		Mask:           mask,
	}
}

func NewConstantNullBlock(count int) *Block {
	return &Block{
		_Format:        BF_CONST_NULL,
		_Typ:           common.ET_NULL,
		_PositionCount: count,
	}
}

func (b *Block) Format() BlockFormat {
	return b._Format
}

func (b *Block) ElementType() common.ElementType {
	return b._Typ
}

func (b *Block) PositionCount() int {
	return b._PositionCount
}

// TotalValueCount is the number of stored value slots.
func (b *Block) TotalValueCount() int {
	switch b._Format {
	case BF_VECTOR, BF_NULLABLE:
		return b._PositionCount
	case BF_CONST_NULL:
		return 0
	default:
		panic("usp")
	}
}

func (b *Block) IsNull(pos int) bool {
	util.AssertFunc(pos >= 0 && pos < b._PositionCount)
	switch b._Format {
	case BF_VECTOR:
		return false
	case BF_NULLABLE:
		return !b.Mask.RowIsValid(uint64(pos))
	case BF_CONST_NULL:
		return true
	default:
		panic("usp")
	}
}

func (b *Block) MayHaveNulls() bool {
	switch b._Format {
	case BF_VECTOR:
		return false
	case BF_NULLABLE:
		return !b.Mask.AllValid()
	default:
		return b._PositionCount > 0
	}
}

func (b *Block) NullCount() int {
	switch b._Format {
	case BF_VECTOR:
		return 0
	case BF_NULLABLE:
		return b._PositionCount - b.Mask.CountValid(b._PositionCount)
	default:
		return b._PositionCount
	}
}

// AsVector returns the dense view of the block, or nil when the block is
// not backed by a contiguous null-free vector.
func (b *Block) AsVector() *Vector {
	if b._Format == BF_VECTOR {
		return b.Vec
	}
	return nil
}

func (b *Block) GetInt(i int) int32 {
	util.AssertFunc(b._Typ == common.ET_INT)
	return GetSliceInBlock[int32](b)[i]
}

func (b *Block) GetLong(i int) int64 {
	util.AssertFunc(b._Typ == common.ET_LONG)
	return GetSliceInBlock[int64](b)[i]
}

func (b *Block) GetDouble(i int) float64 {
	util.AssertFunc(b._Typ == common.ET_DOUBLE)
	return GetSliceInBlock[float64](b)[i]
}

func (b *Block) ValueString(pos int) string {
	if b.IsNull(pos) {
		return "NULL"
	}
	switch b._Format {
	case BF_VECTOR:
		return b.Vec.ValueString(pos)
	default:
		switch b._Typ {
		case common.ET_INT:
			return fmt.Sprint(b.GetInt(pos))
		case common.ET_LONG:
			return fmt.Sprint(b.GetLong(pos))
		case common.ET_DOUBLE:
			return fmt.Sprint(b.GetDouble(pos))
		}
	}
	panic("usp")
}

func (b *Block) String() string {
	sb := strings.Builder{}
	sb.WriteString(b._Typ.String())
	sb.WriteString("Block[format=")
	sb.WriteString(b._Format.String())
	sb.WriteString(", positions=")
	sb.WriteString(fmt.Sprint(b._PositionCount))
	if b._Typ == common.ET_AGGREGATOR_STATE && b.Vec != nil {
		sb.WriteString(", kind=")
		sb.WriteString(b.Vec.Kind())
	}
	sb.WriteString("]")
	return sb.String()
}

// GetSliceInBlock views the stored values as []T, null slots included.
func GetSliceInBlock[T any](b *Block) []T {
	switch b._Format {
	case BF_VECTOR:
		return GetSliceInVector[T](b.Vec)
	case BF_NULLABLE:
		return util.ToSlice[T](b.Data, b._Typ.Size())
	case BF_CONST_NULL:
		return nil
	default:
		panic("usp")
	}
}

// BlockBuilder collects values and nulls. Build returns a dense block when
// no null was appended.
type BlockBuilder[T common.Numeric] struct {
	values  []T
	mask    util.Bitmap
	hasNull bool
}

func NewBlockBuilder[T common.Numeric](estimated int) *BlockBuilder[T] {
	return &BlockBuilder[T]{
		values: make([]T, 0, estimated),
	}
}

func (bb *BlockBuilder[T]) Append(v T) *BlockBuilder[T] {
	bb.values = append(bb.values, v)
	return bb
}

func (bb *BlockBuilder[T]) AppendNull() *BlockBuilder[T] {
	var zero T
	bb.mask.SetInvalid(uint64(len(bb.values)))
	bb.values = append(bb.values, zero)
	bb.hasNull = true
	return bb
}

func (bb *BlockBuilder[T]) Len() int {
	return len(bb.values)
}

func (bb *BlockBuilder[T]) Build() *Block {
	if !bb.hasNull {
		return NewVectorFromSlice[T](bb.values).AsBlock()
	}
	bb.mask.Resize(len(bb.mask.Bits)*8, len(bb.values))
	mask := &util.Bitmap{}
	mask.CopyFrom(&bb.mask, len(bb.values))
	return NewNullableBlock[T](bb.values, mask)
}
