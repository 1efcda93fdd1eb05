package chunk

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/daviszhen/aggr/pkg/util"
)

// Page is a batch of rows: blocks of equal position count. The channel
// of a block is its index.
type Page struct {
	Blocks         []*Block
	_PositionCount int
}

func NewPage(blocks ...*Block) *Page {
	util.AssertFunc(len(blocks) > 0)
	cnt := blocks[0].PositionCount()
	for _, b := range blocks[1:] {
		if b.PositionCount() != cnt {
			panic(fmt.Sprintf("block position count %d does not match page position count %d",
				b.PositionCount(), cnt))
		}
	}
	return &Page{
		Blocks:         blocks,
		_PositionCount: cnt,
	}
}

// NewEmptyPage has positions but no blocks.
func NewEmptyPage(positionCount int) *Page {
	return &Page{
		_PositionCount: positionCount,
	}
}

func (p *Page) PositionCount() int {
	return p._PositionCount
}

func (p *Page) BlockCount() int {
	if p == nil {
		return 0
	}
	return len(p.Blocks)
}

func (p *Page) GetBlock(channel int) *Block {
	if channel < 0 || channel >= len(p.Blocks) {
		panic(fmt.Sprintf("channel %d out of range, page has %d blocks", channel, len(p.Blocks)))
	}
	return p.Blocks[channel]
}

// AppendBlock returns a new page with b as the last channel.
func (p *Page) AppendBlock(b *Block) *Page {
	util.AssertFunc(b.PositionCount() == p._PositionCount)
	blocks := make([]*Block, 0, len(p.Blocks)+1)
	blocks = append(blocks, p.Blocks...)
	blocks = append(blocks, b)
	return &Page{
		Blocks:         blocks,
		_PositionCount: b.PositionCount(),
	}
}

func (p *Page) String() string {
	sb := strings.Builder{}
	sb.WriteString("Page{positions=")
	sb.WriteString(fmt.Sprint(p._PositionCount))
	sb.WriteString(", blocks=[")
	for i, b := range p.Blocks {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.String())
	}
	sb.WriteString("]}")
	return sb.String()
}

func (p *Page) Print2(rowPrefix string) {
	for i := 0; i < p._PositionCount; i++ {
		fields := make([]zap.Field, 0, len(p.Blocks))
		for _, b := range p.Blocks {
			var valStr string
			if b.ElementType().IsNumeric() || b.Format() == BF_CONST_NULL {
				valStr = b.ValueString(i)
			} else {
				valStr = b.Vec.ValueString(i)
			}
			fields = append(fields, zap.String("", valStr))
		}
		util.Info(rowPrefix, fields...)
	}
}
