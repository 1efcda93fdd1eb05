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

package util

import (
	"fmt"
	"io"
	"unsafe"
)

// Write copies the in-memory image of value. Fixed-size values only.
func Write[T any](value T, serial Serialize) error {
	cnt := int(unsafe.Sizeof(value))
	buf := PointerToSlice[byte](unsafe.Pointer(&value), cnt)
	return serial.WriteData(buf, cnt)
}

func Read[T any](value *T, deserial Deserialize) error {
	cnt := int(unsafe.Sizeof(*value))
	buf := PointerToSlice[byte](unsafe.Pointer(value), cnt)
	err := deserial.ReadData(buf, cnt)
	if err != nil {
		return err
	}
	return nil
}

func WriteString(s string, serial Serialize) error {
	err := Write[uint32](uint32(len(s)), serial)
	if err != nil {
		return err
	}
	if len(s) > 0 {
		return serial.WriteData(UnsafeStringToBytes(s), len(s))
	}
	return nil
}

func ReadString(deserial Deserialize) (string, error) {
	var l uint32
	err := Read[uint32](&l, deserial)
	if err != nil {
		return "", err
	}
	if err = EnsureRemaining(deserial, int64(l)); err != nil {
		return "", err
	}
	buf := make([]byte, l)
	err = deserial.ReadData(buf, int(l))
	if err != nil {
		return "", err
	}
	return string(buf), err
}

func WriteBytes(data []byte, serial Serialize) error {
	err := Write[uint32](uint32(len(data)), serial)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		return serial.WriteData(data, len(data))
	}
	return nil
}

func ReadBytes(deserial Deserialize) ([]byte, error) {
	var l uint32
	err := Read[uint32](&l, deserial)
	if err != nil {
		return nil, err
	}
	if err = EnsureRemaining(deserial, int64(l)); err != nil {
		return nil, err
	}
	buf := GAlloc.Alloc(int(l))
	if l > 0 {
		err = deserial.ReadData(buf, int(l))
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// EnsureRemaining fails when deserial knows it holds fewer than n unread
// bytes. Deserializers that cannot tell always pass.
func EnsureRemaining(deserial Deserialize, n int64) error {
	r, ok := deserial.(interface{ Remaining() int })
	if !ok {
		return nil
	}
	if n < 0 || n > int64(r.Remaining()) {
		return fmt.Errorf("need %d bytes, %d left: %w", n, r.Remaining(), io.ErrUnexpectedEOF)
	}
	return nil
}

var _ Serialize = new(BufferSerialize)

// BufferSerialize appends to an in-memory buffer.
type BufferSerialize struct {
	buf []byte
}

func NewBufferSerialize(capacity int) *BufferSerialize {
	return &BufferSerialize{
		buf: make([]byte, 0, capacity),
	}
}

func (serial *BufferSerialize) WriteData(buffer []byte, len int) error {
	serial.buf = append(serial.buf, buffer[:len]...)
	return nil
}

func (serial *BufferSerialize) Bytes() []byte {
	return serial.buf
}

func (serial *BufferSerialize) Reset() {
	serial.buf = serial.buf[:0]
}

func (serial *BufferSerialize) Close() error {
	return nil
}

var _ Deserialize = new(BufferDeserialize)

type BufferDeserialize struct {
	buf []byte
	off int
}

func NewBufferDeserialize(data []byte) *BufferDeserialize {
	return &BufferDeserialize{
		buf: data,
	}
}

func (deserial *BufferDeserialize) ReadData(buffer []byte, len int) error {
	if len == 0 {
		return nil
	}
	if deserial.off+len > lenOf(deserial.buf) {
		return io.ErrUnexpectedEOF
	}
	copy(buffer[:len], deserial.buf[deserial.off:deserial.off+len])
	deserial.off += len
	return nil
}

// Remaining reports the unread byte count.
func (deserial *BufferDeserialize) Remaining() int {
	return lenOf(deserial.buf) - deserial.off
}

func (deserial *BufferDeserialize) Close() error {
	return nil
}

func lenOf(b []byte) int {
	return len(b)
}
