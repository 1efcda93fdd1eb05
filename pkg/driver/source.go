package driver

import (
	"context"
	"io"

	"github.com/daviszhen/aggr/pkg/chunk"
)

// PageSource yields raw pages. Next returns io.EOF after the last page.
type PageSource interface {
	Next(ctx context.Context) (*chunk.Page, error)
	Close() error
	String() string
}

var _ PageSource = new(SliceSource)

// SliceSource replays pages held in memory.
type SliceSource struct {
	_pages []*chunk.Page
	_next  int
}

func NewSliceSource(pages ...*chunk.Page) *SliceSource {
	return &SliceSource{
		_pages: pages,
	}
}

func (src *SliceSource) Next(ctx context.Context) (*chunk.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src._next >= len(src._pages) {
		return nil, io.EOF
	}
	page := src._pages[src._next]
	src._next++
	return page, nil
}

func (src *SliceSource) Close() error {
	return nil
}

func (src *SliceSource) String() string {
	return "memory"
}
