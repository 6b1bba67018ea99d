package driver

import (
	"github.com/gqmelo/mesa/gfx8"
)

// batchBO is one link in a command buffer's chain of batch buffers. Links
// point backward only; the newest batchBO is always the current write
// target, and the chain is walked newest-to-oldest through prev.
type batchBO struct {
	bo     *BO
	length int

	// This BO's slice of the owning relocation list. Fixed once finish runs.
	firstReloc int
	relocCount int

	prev *batchBO
}

func newBatchBO(device *Device) (*batchBO, error) {
	bo, err := device.batchBoPool.Alloc()
	if err != nil {
		return nil, err
	}
	return &batchBO{bo: bo}, nil
}

// start points batch's cursors at this BO, reserving tail space for the
// chaining jump so an extension always has room to emit it.
func (bbo *batchBO) start(batch *Batch, tailReserve int) {
	batch.data = bbo.bo.mapped
	batch.start = 0
	batch.next = 0
	batch.end = bbo.bo.size - tailReserve

	bbo.firstReloc = batch.relocs.Len()
}

// finish freezes this BO's bookkeeping: its byte length and its relocation
// sub-range become immutable.
func (bbo *batchBO) finish(batch *Batch) {
	bbo.length = batch.Used()
	bbo.relocCount = batch.relocs.Len() - bbo.firstReloc
}

func (bbo *batchBO) destroy(device *Device) {
	device.batchBoPool.Free(bbo.bo)
	bbo.bo = nil
}

// batchTailReserve is the byte tail every chained batch BO keeps free for
// the jump into its successor.
const batchTailReserve = gfx8.MIBatchBufferStartLength * 4

// chainBatch extends batch onto a fresh BO: un-reserve the tail, emit the
// jump into the new BO, pad the old one to an 8-byte boundary, freeze its
// bookkeeping, and make the new BO current.
func (cb *CommandBuffer) chainBatch(batch *Batch) error {
	newBBO, err := newBatchBO(cb.device)
	if err != nil {
		return err
	}

	batch.end += batchTailReserve

	at := batch.Emit(gfx8.MIBatchBufferStart{
		AddressSpace: gfx8.AddressSpacePPGTT,
	})
	batch.EmitReloc(at+gfx8.BatchBufferStartAddressOffset, newBBO.bo, 0)

	for batch.Used()%8 != 0 {
		batch.Emit(gfx8.MINoop{})
	}

	cb.lastBatchBO.finish(batch)

	newBBO.prev = cb.lastBatchBO
	cb.lastBatchBO = newBBO
	newBBO.start(batch, batchTailReserve)
	return nil
}
