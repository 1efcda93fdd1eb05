package util

import "math/bits"

// Bitmap is a validity mask. A set bit means the row is valid.
// A Bitmap without backing bits treats every row as valid.
type Bitmap struct {
	Bits []uint8
}

func (bm *Bitmap) Data() []uint8 {
	return bm.Bits
}

func (bm *Bitmap) Bytes(count int) int {
	return EntryCount(count)
}

func (bm *Bitmap) Init(count int) {
	cnt := EntryCount(count)
	bm.Bits = GAlloc.Alloc(cnt)
	for i := range bm.Bits {
		bm.Bits[i] = 0xFF
	}
}

func (bm *Bitmap) Invalid() bool {
	return bm == nil || len(bm.Bits) == 0
}

func (bm *Bitmap) GetEntry(eIdx uint64) uint8 {
	if bm.Invalid() {
		return 0xFF
	}
	return bm.Bits[eIdx]
}

func GetEntryIndex(idx uint64) (uint64, uint64) {
	return idx / 8, idx % 8
}

func EntryIsSet(e uint8, pos uint64) bool {
	return e&(1<<pos) != 0
}

func (bm *Bitmap) RowIsValidUnsafe(idx uint64) bool {
	eIdx, pos := GetEntryIndex(idx)
	e := bm.GetEntry(eIdx)
	return EntryIsSet(e, pos)
}

func (bm *Bitmap) RowIsValid(idx uint64) bool {
	if bm.Invalid() {
		return true
	}
	return bm.RowIsValidUnsafe(idx)
}

// SetInvalid marks ridx as null. The mask grows on demand, new rows
// start out valid.
func (bm *Bitmap) SetInvalid(ridx uint64) {
	if bm.Invalid() {
		bm.Init(max(DefaultVectorSize, int(ridx)+1))
	} else if EntryCount(int(ridx)+1) > len(bm.Bits) {
		bm.Resize(len(bm.Bits)*8, int(ridx)+1)
	}
	bm.SetInvalidUnsafe(ridx)
}

func (bm *Bitmap) SetInvalidUnsafe(ridx uint64) {
	eIdx, pos := GetEntryIndex(ridx)
	bm.Bits[eIdx] &= ^(1 << pos)
}

func EntryCount(cnt int) int {
	return (cnt + 7) / 8
}

func (bm *Bitmap) Resize(old int, new int) {
	if new <= old {
		return
	}
	if bm.Bits != nil {
		ncnt := EntryCount(new)
		ocnt := EntryCount(old)
		newData := GAlloc.Alloc(ncnt)
		copy(newData, bm.Bits)
		for i := ocnt; i < ncnt; i++ {
			newData[i] = 0xFF
		}
		bm.Bits = newData
	} else {
		bm.Init(new)
	}
}

func (bm *Bitmap) AllValid() bool {
	return bm.Invalid()
}

// CountValid returns the number of valid rows among the first count rows.
func (bm *Bitmap) CountValid(count int) int {
	if bm.Invalid() {
		return count
	}
	full := count / 8
	ret := 0
	for i := 0; i < full; i++ {
		ret += bits.OnesCount8(bm.Bits[i])
	}
	if rest := count % 8; rest != 0 {
		ret += bits.OnesCount8(bm.Bits[full] & ^(0xFF << rest))
	}
	return ret
}

func (bm *Bitmap) CopyFrom(other *Bitmap, count int) {
	if other.AllValid() {
		bm.Bits = nil
	} else {
		eCnt := EntryCount(count)
		bm.Bits = make([]uint8, eCnt)
		copy(bm.Bits, other.Bits[:eCnt])
	}
}
