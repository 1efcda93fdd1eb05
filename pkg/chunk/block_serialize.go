package chunk

import (
	"fmt"

	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

// MaxPositionCount bounds the positions of a decoded block.
const MaxPositionCount = 1<<31 - 1

// Serialize writes the block in its own layout. State blocks keep their
// kind and item width so that the receiver can check them.
func (b *Block) Serialize(serial util.Serialize) error {
	err := util.Write[int32](int32(b._Format), serial)
	if err != nil {
		return err
	}
	err = util.Write[int32](int32(b._Typ), serial)
	if err != nil {
		return err
	}
	err = util.Write[int64](int64(b._PositionCount), serial)
	if err != nil {
		return err
	}
	switch b._Format {
	case BF_VECTOR:
		vec := b.Vec
		err = util.Write[int32](int32(vec._ItemSize), serial)
		if err != nil {
			return err
		}
		err = util.WriteString(vec._Kind, serial)
		if err != nil {
			return err
		}
		return util.WriteBytes(vec.Data[:vec._ItemSize*vec._Count], serial)
	case BF_NULLABLE:
		writeValidity := b._PositionCount > 0 && !b.Mask.AllValid()
		err = util.Write[bool](writeValidity, serial)
		if err != nil {
			return err
		}
		if writeValidity {
			err = serial.WriteData(b.Mask.Data(), b.Mask.Bytes(b._PositionCount))
			if err != nil {
				return err
			}
		}
		return util.WriteBytes(b.Data[:b._Typ.Size()*b._PositionCount], serial)
	case BF_CONST_NULL:
		return nil
	default:
		panic("usp")
	}
}

func DeserializeBlock(deserial util.Deserialize) (*Block, error) {
	var format, typ int32
	var count int64
	err := util.Read[int32](&format, deserial)
	if err != nil {
		return nil, err
	}
	err = util.Read[int32](&typ, deserial)
	if err != nil {
		return nil, err
	}
	err = util.Read[int64](&count, deserial)
	if err != nil {
		return nil, err
	}
	et := common.ElementType(typ)
	if !et.IsValid() {
		return nil, fmt.Errorf("invalid element type %d", typ)
	}
	if count < 0 || count > MaxPositionCount {
		return nil, fmt.Errorf("invalid position count %d", count)
	}
	switch BlockFormat(format) {
	case BF_VECTOR:
		var itemSize int32
		err = util.Read[int32](&itemSize, deserial)
		if err != nil {
			return nil, err
		}
		switch {
		case et.IsNumeric():
			if int(itemSize) != et.Size() {
				return nil, fmt.Errorf("%s vector with item size %d", et, itemSize)
			}
		case et == common.ET_AGGREGATOR_STATE:
			if itemSize <= 0 {
				return nil, fmt.Errorf("aggregator state vector with item size %d", itemSize)
			}
		default:
			return nil, fmt.Errorf("vector of %s", et)
		}
		if err = util.EnsureRemaining(deserial, int64(itemSize)*count); err != nil {
			return nil, err
		}
		kind, err := util.ReadString(deserial)
		if err != nil {
			return nil, err
		}
		data, err := util.ReadBytes(deserial)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != int64(itemSize)*count {
			return nil, fmt.Errorf("vector of %d items of %d bytes carries %d bytes", count, itemSize, len(data))
		}
		vec := &Vector{
			_Typ:      et,
			_Count:    int(count),
			_ItemSize: int(itemSize),
			_Kind:     kind,
			Data:      data,
		}
		return vec.AsBlock(), nil
	case BF_NULLABLE:
		if !et.IsNumeric() {
			return nil, fmt.Errorf("nullable block of %s", et)
		}
		hasMask := false
		err = util.Read[bool](&hasMask, deserial)
		if err != nil {
			return nil, err
		}
		mask := &util.Bitmap{}
		if err = util.EnsureRemaining(deserial, int64(et.Size())*count); err != nil {
			return nil, err
		}
		if hasMask {
			if err = util.EnsureRemaining(deserial, int64(util.EntryCount(int(count)))); err != nil {
				return nil, err
			}
			mask.Init(int(count))
			err = deserial.ReadData(mask.Data(), mask.Bytes(int(count)))
			if err != nil {
				return nil, err
			}
		}
		data, err := util.ReadBytes(deserial)
		if err != nil {
			return nil, err
		}
		if len(data) != et.Size()*int(count) {
			return nil, fmt.Errorf("nullable block of %d %s carries %d bytes", count, et, len(data))
		}
		return &Block{
			_Format:        BF_NULLABLE,
			_Typ:           et,
			_PositionCount: int(count),
			Data:           data,
			Mask:           mask,
		}, nil
	case BF_CONST_NULL:
		return NewConstantNullBlock(int(count)), nil
	default:
		return nil, fmt.Errorf("invalid block format %d", format)
	}
}

func (p *Page) Serialize(serial util.Serialize) error {
	err := util.Write[int64](int64(p._PositionCount), serial)
	if err != nil {
		return err
	}
	err = util.Write[int32](int32(len(p.Blocks)), serial)
	if err != nil {
		return err
	}
	for _, b := range p.Blocks {
		err = b.Serialize(serial)
		if err != nil {
			return err
		}
	}
	return nil
}

func DeserializePage(deserial util.Deserialize) (*Page, error) {
	var count int64
	var blockCnt int32
	err := util.Read[int64](&count, deserial)
	if err != nil {
		return nil, err
	}
	err = util.Read[int32](&blockCnt, deserial)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > MaxPositionCount {
		return nil, fmt.Errorf("invalid page position count %d", count)
	}
	if blockCnt < 0 {
		return nil, fmt.Errorf("invalid block count %d", blockCnt)
	}
	page := NewEmptyPage(int(count))
	for i := 0; i < int(blockCnt); i++ {
		b, err := DeserializeBlock(deserial)
		if err != nil {
			return nil, err
		}
		if b.PositionCount() != page._PositionCount {
			return nil, fmt.Errorf("block %d has %d positions, page has %d",
				i, b.PositionCount(), page._PositionCount)
		}
		page.Blocks = append(page.Blocks, b)
	}
	return page, nil
}
