package driver

import (
	"github.com/gqmelo/mesa/gem"
	"github.com/gqmelo/mesa/memutils"
)

const execStartCap = 64

// addBO appends bo to the execution object list, deduplicating by the
// transient bo.index. The index alone is not proof of membership: it may be
// left over from a previous submission, so the slot is identity-checked.
func (cb *CommandBuffer) addBO(bo *BO, relocs *RelocList, first, count int) {
	if bo.index >= 0 && bo.index < cb.boCount && cb.execBOs[bo.index] == bo {
		obj := &cb.execObjects[bo.index]
		if relocs != nil && obj.Relocs == nil {
			obj.Relocs = relocs.entries[first : first+count]
		}
		return
	}

	if cb.boCount >= len(cb.execObjects) {
		newLen := len(cb.execObjects) * 2
		if newLen == 0 {
			newLen = execStartCap
		}

		newObjects := make([]gem.ExecObject, newLen)
		copy(newObjects, cb.execObjects)
		cb.execObjects = newObjects

		newBOs := make([]*BO, newLen)
		copy(newBOs, cb.execBOs)
		cb.execBOs = newBOs
	}

	bo.index = cb.boCount
	cb.boCount++

	cb.execBOs[bo.index] = bo
	cb.execObjects[bo.index] = gem.ExecObject{
		Handle: bo.handle,
		Offset: bo.offset,
	}
	if relocs != nil {
		cb.execObjects[bo.index].Relocs = relocs.entries[first : first+count]
	}
}

// addRelocTargetBOs adds every BO a relocation sub-range points at. Targets
// carry no relocations of their own here; if a target is also a batch BO its
// relocations attach when the BO itself is added.
func (cb *CommandBuffer) addRelocTargetBOs(relocs *RelocList, first, count int) {
	for i := first; i < first+count; i++ {
		cb.addBO(relocs.targets[i], nil, 0, 0)
	}
}

// processRelocs rewrites each entry's target handle to the target's
// execution-list index and reports whether any presumed offset went stale.
func (cb *CommandBuffer) processRelocs(relocs *RelocList, first, count int) {
	for i := first; i < first+count; i++ {
		entry := &relocs.entries[i]
		target := relocs.targets[i]

		if target.offset != entry.PresumedOffset {
			cb.needReloc = true
		}
		entry.TargetHandle = uint32(target.index)
	}
}

// chainOldestFirst reverses a prev-linked chain into execution order.
func chainOldestFirst(newest *batchBO) []*batchBO {
	var n int
	for bbo := newest; bbo != nil; bbo = bbo.prev {
		n++
	}

	chain := make([]*batchBO, n)
	for bbo := newest; bbo != nil; bbo = bbo.prev {
		n--
		chain[n] = bbo
	}
	return chain
}

// assembleExec builds the execution object list for one finished command
// buffer. Ordering is load-bearing: surface-state BOs go in oldest first so
// later binding tables win, and the BO holding the start of the instruction
// chain goes in strictly last, because the kernel executes the final object
// in the list.
func (cb *CommandBuffer) assembleExec() error {
	cb.device.mutex.Lock()
	defer cb.device.mutex.Unlock()

	memutils.DebugValidate(&cb.surfaceRelocs)
	memutils.DebugValidate(&cb.batchRelocs)

	// bo.index is only meaningful during assembly.
	cb.boCount = 0
	cb.needReloc = false

	for _, bbo := range chainOldestFirst(cb.surfaceBatchBO) {
		cb.addBO(bbo.bo, &cb.surfaceRelocs, bbo.firstReloc, bbo.relocCount)
	}
	cb.addRelocTargetBOs(&cb.surfaceRelocs, 0, cb.surfaceRelocs.Len())

	chain := chainOldestFirst(cb.lastBatchBO)
	root := chain[0]
	for _, bbo := range chain[1:] {
		cb.addBO(bbo.bo, &cb.batchRelocs, bbo.firstReloc, bbo.relocCount)
	}
	cb.addRelocTargetBOs(&cb.batchRelocs, 0, cb.batchRelocs.Len())

	cb.addBO(root.bo, &cb.batchRelocs, root.firstReloc, root.relocCount)
	if root.bo.index != cb.boCount-1 {
		panic("batch chain root is referenced before it executes")
	}

	cb.processRelocs(&cb.surfaceRelocs, 0, cb.surfaceRelocs.Len())
	cb.processRelocs(&cb.batchRelocs, 0, cb.batchRelocs.Len())

	flags := gem.ExecHandleLUT | gem.ExecRender
	if !cb.needReloc {
		flags |= gem.ExecNoReloc
	}

	cb.execbuf = gem.ExecBuffer{
		Objects:          cb.execObjects[:cb.boCount],
		BatchStartOffset: 0,
		BatchLen:         root.length,
		Flags:            flags,
		ContextID:        cb.device.contextID,
	}

	return nil
}
