// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	pqLocal "github.com/xitongsys/parquet-go-source/local"
	pqReader "github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"go.uber.org/zap"

	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/util"
)

// ParquetColumn selects a leaf column by index and the element type it is
// read as.
type ParquetColumn struct {
	Index int
	Typ   common.ElementType
}

var _ PageSource = new(ParquetSource)

// ParquetSource reads the selected columns of a parquet file page by
// page. Nulls of optional columns become nulls of the block.
type ParquetSource struct {
	_path     string
	_columns  []ParquetColumn
	_pageSize int
	_showRaw  bool
	_file     source.ParquetFile
	_reader   *pqReader.ParquetReader
	_numRows  int64
	_readRows int64
}

func NewParquetSource(path string, columns []ParquetColumn, cfg *util.Config) (*ParquetSource, error) {
	if len(columns) == 0 {
		return nil, errors.New("no column to read")
	}
	for _, col := range columns {
		if !col.Typ.IsNumeric() {
			return nil, fmt.Errorf("column %d: unsupported type %s", col.Index, col.Typ)
		}
	}
	file, err := pqLocal.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	np := int64(max(cfg.Source.Parallel, 1))
	reader, err := pqReader.NewParquetColumnReader(file, np)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	for _, col := range columns {
		if col.Index < 0 || col.Index >= len(reader.SchemaHandler.ValueColumns) {
			reader.ReadStop()
			_ = file.Close()
			return nil, fmt.Errorf("column %d out of range %d", col.Index, len(reader.SchemaHandler.ValueColumns))
		}
	}
	util.Info("open parquet source",
		zap.String("path", path),
		zap.Int64("rows", reader.GetNumRows()),
		zap.Int("columns", len(columns)))
	return &ParquetSource{
		_path:     path,
		_columns:  columns,
		_pageSize: cfg.Pipeline.PageSize,
		_showRaw:  cfg.Debug.ShowRaw,
		_file:     file,
		_reader:   reader,
		_numRows:  reader.GetNumRows(),
	}, nil
}

func (src *ParquetSource) Next(ctx context.Context) (*chunk.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src._readRows >= src._numRows {
		return nil, io.EOF
	}
	maxCnt := min(int64(src._pageSize), src._numRows-src._readRows)
	rowCount := -1
	blocks := make([]*chunk.Block, 0, len(src._columns))
	for _, col := range src._columns {
		values, _, _, err := src._reader.ReadColumnByIndex(int64(col.Index), maxCnt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(values) == 0 {
			return nil, io.EOF
		}
		if rowCount < 0 {
			rowCount = len(values)
		} else if len(values) != rowCount {
			return nil, fmt.Errorf("column %d has different count of values %d with previous columns %d",
				col.Index, len(values), rowCount)
		}
		if src._showRaw {
			util.Debug("parquet raw", zap.Int("column", col.Index), zap.Any("values", values))
		}
		var block *chunk.Block
		switch col.Typ {
		case common.ET_INT:
			block, err = buildBlock[int32](values, col)
		case common.ET_LONG:
			block, err = buildBlock[int64](values, col)
		case common.ET_DOUBLE:
			block, err = buildBlock[float64](values, col)
		default:
			panic("usp")
		}
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	src._readRows += int64(rowCount)
	return chunk.NewPage(blocks...), nil
}

func buildBlock[T common.Numeric](values []any, col ParquetColumn) (*chunk.Block, error) {
	bb := chunk.NewBlockBuilder[T](len(values))
	for _, field := range values {
		if field == nil {
			bb.AppendNull()
			continue
		}
		val, err := parquetColToValue[T](field)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", col.Index, err)
		}
		bb.Append(val)
	}
	return bb.Build(), nil
}

func parquetColToValue[T common.Numeric](field any) (T, error) {
	switch fVal := field.(type) {
	case int32:
		return T(fVal), nil
	case int64:
		var zero T
		if _, isInt := any(zero).(int32); isInt {
			return zero, fmt.Errorf("int64 value %d read as INT", fVal)
		}
		return T(fVal), nil
	case float32:
		var zero T
		if _, isDouble := any(zero).(float64); !isDouble {
			return zero, fmt.Errorf("float value %v read as integer", fVal)
		}
		return T(fVal), nil
	case float64:
		var zero T
		if _, isDouble := any(zero).(float64); !isDouble {
			return zero, fmt.Errorf("double value %v read as integer", fVal)
		}
		return T(fVal), nil
	default:
		var zero T
		return zero, fmt.Errorf("unsupported parquet value %T", field)
	}
}

func (src *ParquetSource) NumRows() int64 {
	return src._numRows
}

func (src *ParquetSource) Close() error {
	src._reader.ReadStop()
	return src._file.Close()
}

func (src *ParquetSource) String() string {
	return fmt.Sprintf("parquet %s", src._path)
}
