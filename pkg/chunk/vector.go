package chunk

import (
	"fmt"
	"strings"

	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

// Vector is a dense, null-free run of fixed-width values. A Vector is
// never written after it has been handed out.
type Vector struct {
	_Typ      common.ElementType
	_Count    int
	_ItemSize int
	// _Kind names the producer of ET_AGGREGATOR_STATE items.
	_Kind string
	Data  []byte
}

func NewFlatVector(typ common.ElementType, count int) *Vector {
	util.AssertFunc(typ.IsNumeric())
	sz := typ.Size()
	return &Vector{
		_Typ:      typ,
		_Count:    count,
		_ItemSize: sz,
		Data:      util.GAlloc.Alloc(sz * count),
	}
}

// NewVectorFromSlice copies values into a new vector of type typ.
func NewVectorFromSlice[T common.Numeric](values []T) *Vector {
	vec := NewFlatVector(common.ElementTypeOf[T](), len(values))
	copy(GetSliceInVector[T](vec), values)
	return vec
}

func NewIntVector(values ...int32) *Vector {
	return NewVectorFromSlice[int32](values)
}

func NewLongVector(values ...int64) *Vector {
	return NewVectorFromSlice[int64](values)
}

func NewDoubleVector(values ...float64) *Vector {
	return NewVectorFromSlice[float64](values)
}

// NewIntRangeVector holds start, start+1, ..., end-1.
func NewIntRangeVector(start, end int32) *Vector {
	util.AssertFunc(start <= end)
	vec := NewFlatVector(common.ET_INT, int(end-start))
	data := GetSliceInVector[int32](vec)
	for i := range data {
		data[i] = start + int32(i)
	}
	return vec
}

func (vec *Vector) Typ() common.ElementType {
	return vec._Typ
}

func (vec *Vector) PositionCount() int {
	return vec._Count
}

func (vec *Vector) ItemSize() int {
	return vec._ItemSize
}

func (vec *Vector) Kind() string {
	return vec._Kind
}

func (vec *Vector) GetInt(i int) int32 {
	util.AssertFunc(vec._Typ == common.ET_INT)
	return GetSliceInVector[int32](vec)[i]
}

func (vec *Vector) GetLong(i int) int64 {
	util.AssertFunc(vec._Typ == common.ET_LONG)
	return GetSliceInVector[int64](vec)[i]
}

func (vec *Vector) GetDouble(i int) float64 {
	util.AssertFunc(vec._Typ == common.ET_DOUBLE)
	return GetSliceInVector[float64](vec)[i]
}

// GetItem returns the raw bytes of position i.
func (vec *Vector) GetItem(i int) []byte {
	util.AssertFunc(i >= 0 && i < vec._Count)
	return vec.Data[i*vec._ItemSize : (i+1)*vec._ItemSize]
}

func (vec *Vector) AsBlock() *Block {
	return &Block{
		_Format:        BF_VECTOR,
		_Typ:           vec._Typ,
		_PositionCount: vec._Count,
		Vec:            vec,
	}
}

func (vec *Vector) ValueString(i int) string {
	switch vec._Typ {
	case common.ET_INT:
		return fmt.Sprint(vec.GetInt(i))
	case common.ET_LONG:
		return fmt.Sprint(vec.GetLong(i))
	case common.ET_DOUBLE:
		return fmt.Sprint(vec.GetDouble(i))
	case common.ET_AGGREGATOR_STATE:
		return fmt.Sprintf("%s<%d bytes>", vec._Kind, vec._ItemSize)
	default:
		panic("usp")
	}
}

func (vec *Vector) String() string {
	sb := strings.Builder{}
	sb.WriteString(vec._Typ.String())
	sb.WriteString("Vector[positions=")
	sb.WriteString(fmt.Sprint(vec._Count))
	sb.WriteString("]")
	return sb.String()
}

// GetSliceInVector views the vector data as []T. T must match the
// vector's element type.
func GetSliceInVector[T any](vec *Vector) []T {
	return util.ToSlice[T](vec.Data, vec._ItemSize)
}
