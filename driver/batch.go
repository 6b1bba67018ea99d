package driver

import (
	"encoding/binary"

	"github.com/gqmelo/mesa/gfx8"
)

// Batch is a cursor-based writer into one BO's mapped bytes. start, next and
// end are byte offsets into data with start <= next <= end; next only moves
// forward within one BO. When a write would pass end, the extend callback
// must swing the cursors onto a fresh BO.
//
// Emission never reports errors inline. A failed extension poisons the
// batch: the cursors are pointed at throwaway memory so recording code can
// keep writing safely, and the first error is latched for the owner to
// surface when recording ends.
type Batch struct {
	data  []byte
	start int
	next  int
	end   int

	relocs *RelocList
	extend func(*Batch) error
	err    error
}

// Err returns the first emission failure, or nil.
func (b *Batch) Err() error {
	return b.err
}

// Used reports how many bytes have been written to the current BO.
func (b *Batch) Used() int {
	return b.next - b.start
}

// Data returns the written byte range of the current BO.
func (b *Batch) Data() []byte {
	return b.data[b.start:b.next]
}

func (b *Batch) fail(err error) {
	if b.err == nil {
		b.err = err
	}

	// Swing the cursors onto scratch memory big enough for anything a
	// single emit produces.
	b.data = make([]byte, 4096)
	b.start = 0
	b.next = 0
	b.end = len(b.data)
}

// emitSpace reserves size writable bytes, extending onto a new BO first if
// the current one cannot hold them.
func (b *Batch) emitSpace(size int) []byte {
	if b.next+size > b.end {
		if b.extend == nil {
			panic("batch overflow with no growth policy")
		}
		if err := b.extend(b); err != nil {
			b.fail(err)
		}
	}

	space := b.data[b.next : b.next+size]
	b.next += size
	return space
}

// EmitDwords reserves n writable dwords and returns their byte window.
func (b *Batch) EmitDwords(n int) []byte {
	return b.emitSpace(n * 4)
}

// Emit packs one command packet into the batch and returns the byte offset,
// relative to start, where it landed.
func (b *Batch) Emit(p gfx8.Packet) int {
	n := p.Length()

	var scratch [16]uint32
	var dwords []uint32
	if n <= len(scratch) {
		dwords = scratch[:n]
	} else {
		dwords = make([]uint32, n)
	}
	for i := range dwords {
		dwords[i] = 0
	}
	p.Pack(dwords)

	dst := b.emitSpace(n * 4)
	for i, dw := range dwords {
		binary.LittleEndian.PutUint32(dst[i*4:], dw)
	}
	return b.next - n*4 - b.start
}

// EmitMerge ORs two equal-length dword images into the batch. Hardware state
// packets let independently-set bitfields from two sources combine this way,
// so pipeline-baked state and dynamic state merge without a re-pack.
func (b *Batch) EmitMerge(x, y []uint32) int {
	if len(x) != len(y) {
		panic("merging state packets of different lengths")
	}

	dst := b.emitSpace(len(x) * 4)
	for i := range x {
		binary.LittleEndian.PutUint32(dst[i*4:], x[i]|y[i])
	}
	return b.next - len(x)*4 - b.start
}

// EmitReloc records a relocation for the 48-bit address at byte offset
// location (relative to start) and writes the presumed address there. The
// kernel rewrites those bytes at execution time if the target moved.
func (b *Batch) EmitReloc(location int, target *BO, delta uint64) uint64 {
	if b.err != nil {
		return 0
	}

	addr := b.relocs.Add(location, target, delta)
	binary.LittleEndian.PutUint64(b.data[b.start+location:], addr)
	return addr
}

// EmitBatch splices src's written bytes into b and carries src's
// relocations across, biased by the destination offset. Used to replay a
// pipeline's pre-baked command sequence without re-encoding it.
func (b *Batch) EmitBatch(src *Batch) {
	size := src.next - src.start
	dst := b.emitSpace(size)
	at := b.next - size - b.start

	copy(dst, src.data[src.start:src.next])
	if b.err == nil {
		b.relocs.Append(src.relocs, at)
	}
}
