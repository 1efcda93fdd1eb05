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

// Package exchange turns pages into self-describing byte frames that can
// cross a stage or node boundary.
package exchange

import (
	"encoding/binary"
	"fmt"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/util"
)

type Compression uint8

const (
	CT_NONE Compression = iota
	CT_ZSTD
)

func (c Compression) String() string {
	switch c {
	case CT_NONE:
		return "none"
	case CT_ZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CT_NONE, nil
	case "zstd":
		return CT_ZSTD, nil
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

const (
	frameMagic = 0xA6
	// magic, compression, uncompressed length, checksum of the
	// uncompressed bytes
	headerSize = 1 + 1 + 4 + 8
)

// MaxFrameSize bounds the uncompressed bytes of one frame.
const MaxFrameSize = 256 << 20

// FaultEncode is injected before a page is encoded.
const FaultEncode = "exchange.encode"

var zstdDecoder *zstd.Decoder

func init() {
	z, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)),
		zstd.WithDecoderMaxMemory(MaxFrameSize))
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
}

// Codec encodes pages with one compression and decodes frames of any
// compression. It is safe for concurrent use.
type Codec struct {
	_compression Compression
	_encoder     *zstd.Encoder
}

func NewCodec(compression Compression) (*Codec, error) {
	codec := &Codec{
		_compression: compression,
	}
	switch compression {
	case CT_NONE:
	case CT_ZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		codec._encoder = enc
	default:
		return nil, fmt.Errorf("unknown compression %d", compression)
	}
	return codec, nil
}

func (codec *Codec) Compression() Compression {
	return codec._compression
}

func (codec *Codec) EncodePage(page *chunk.Page) ([]byte, error) {
	if err := util.Inject(util.FAULTS_SCOPE_EXCHANGE, FaultEncode); err != nil {
		return nil, errors.Wrap(err, "encode page")
	}
	serial := util.NewBufferSerialize(256)
	err := page.Serialize(serial)
	if err != nil {
		return nil, errors.Wrap(err, "serialize page")
	}
	raw := serial.Bytes()
	if len(raw) > MaxFrameSize {
		return nil, fmt.Errorf("page of %d bytes exceeds frame limit %d", len(raw), MaxFrameSize)
	}

	frame := make([]byte, headerSize, headerSize+len(raw))
	frame[0] = frameMagic
	frame[1] = byte(codec._compression)
	binary.LittleEndian.PutUint32(frame[2:], uint32(len(raw)))
	binary.LittleEndian.PutUint64(frame[6:], util.Checksum(raw))
	switch codec._compression {
	case CT_NONE:
		frame = append(frame, raw...)
	case CT_ZSTD:
		frame = codec._encoder.EncodeAll(raw, frame)
	}
	return frame, nil
}

func DecodePage(frame []byte) (*chunk.Page, error) {
	if len(frame) < headerSize || frame[0] != frameMagic {
		return nil, errors.New("not a page frame")
	}
	rawLen := int(binary.LittleEndian.Uint32(frame[2:]))
	payload := frame[headerSize:]
	if rawLen > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds frame limit %d", rawLen, MaxFrameSize)
	}
	var raw []byte
	switch Compression(frame[1]) {
	case CT_NONE:
		raw = payload
	case CT_ZSTD:
		var err error
		raw, err = zstdDecoder.DecodeAll(payload, make([]byte, 0, min(rawLen, 64*len(payload))))
		if err != nil {
			return nil, errors.Wrap(err, "zstd decode")
		}
	default:
		return nil, fmt.Errorf("unknown frame compression %d", frame[1])
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("expected %d bytes decompressed; got %d", rawLen, len(raw))
	}
	if sum := binary.LittleEndian.Uint64(frame[6:]); sum != util.Checksum(raw) {
		return nil, errors.New("page frame checksum mismatch")
	}
	deserial := util.NewBufferDeserialize(raw)
	page, err := chunk.DeserializePage(deserial)
	if err != nil {
		return nil, errors.Wrap(err, "deserialize page")
	}
	if deserial.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after page", deserial.Remaining())
	}
	return page, nil
}

// DecodePage decodes a frame of any compression.
func (codec *Codec) DecodePage(frame []byte) (*chunk.Page, error) {
	return DecodePage(frame)
}
