package common

import "fmt"

// ElementType tags the scalar type stored in a Vector or Block.
type ElementType int

const (
	// ET_NULL is the type of a column whose every position is null.
	ET_NULL ElementType = iota
	ET_INT
	ET_LONG
	ET_DOUBLE
	// ET_AGGREGATOR_STATE marks serialized accumulator state.
	ET_AGGREGATOR_STATE

	ET_INVALID ElementType = 255
)

const (
	IntSize    = 4
	LongSize   = 8
	DoubleSize = 8
)

var eTypeToStr = map[ElementType]string{
	ET_NULL:             "NULL",
	ET_INT:              "INT",
	ET_LONG:             "LONG",
	ET_DOUBLE:           "DOUBLE",
	ET_AGGREGATOR_STATE: "AGGREGATOR_STATE",
	ET_INVALID:          "INVALID",
}

func (et ElementType) String() string {
	if s, has := eTypeToStr[et]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", int(et)))
}

// Size is the fixed width of one value. ET_NULL and ET_AGGREGATOR_STATE
// have no intrinsic width.
func (et ElementType) Size() int {
	switch et {
	case ET_INT:
		return IntSize
	case ET_LONG:
		return LongSize
	case ET_DOUBLE:
		return DoubleSize
	case ET_NULL, ET_AGGREGATOR_STATE:
		return 0
	default:
		panic(fmt.Sprintf("usp %d", int(et)))
	}
}

func (et ElementType) IsNumeric() bool {
	return et == ET_INT || et == ET_LONG || et == ET_DOUBLE
}

func (et ElementType) IsValid() bool {
	_, has := eTypeToStr[et]
	return has && et != ET_INVALID
}

// ParseElementType maps a lower or upper case name to its tag.
func ParseElementType(name string) (ElementType, error) {
	switch name {
	case "null", "NULL":
		return ET_NULL, nil
	case "int", "INT", "integer", "INTEGER":
		return ET_INT, nil
	case "long", "LONG", "bigint", "BIGINT":
		return ET_LONG, nil
	case "double", "DOUBLE":
		return ET_DOUBLE, nil
	}
	return ET_INVALID, fmt.Errorf("unknown element type %q", name)
}

// Numeric is the set of Go types backing numeric element types.
type Numeric interface {
	~int32 | ~int64 | ~float64
}

// ElementTypeOf returns the element type backed by T.
func ElementTypeOf[T Numeric]() ElementType {
	var v T
	switch any(v).(type) {
	case int32:
		return ET_INT
	case int64:
		return ET_LONG
	case float64:
		return ET_DOUBLE
	}
	panic(fmt.Sprintf("usp %T", v))
}
