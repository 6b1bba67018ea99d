package driver

import (
	"encoding/binary"
	"math/bits"

	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gfx8"
	"github.com/gqmelo/mesa/memutils"
)

// errSurfaceStateFull signals that the current surface-state BO cannot hold
// another allocation; the flush recovers by chaining a fresh BO and
// re-emitting every active stage's tables.
var errSurfaceStateFull = errors.New("surface state buffer full")

// emitStateBaseAddress programs the four regions state offsets resolve
// against: general (scratch), surface (this command buffer's surface chain),
// dynamic and instruction (device block pools).
func (cb *CommandBuffer) emitStateBaseAddress() {
	device := cb.device
	cb.scratchSize = device.scratchSize()

	at := cb.batch.Emit(gfx8.StateBaseAddress{})
	if cb.scratchSize > 0 {
		cb.batch.EmitReloc(at+gfx8.GeneralStateAddressOffset, device.scratchBlock.BO(), 0)
	}
	cb.batch.EmitReloc(at+gfx8.SurfaceStateAddressOffset, cb.surfaceBatchBO.bo, 0)
	cb.batch.EmitReloc(at+gfx8.DynamicStateAddressOffset, device.dynamicStateBlock.BO(), 0)
	cb.batch.EmitReloc(at+gfx8.InstructionStateAddressOffset, device.instructionBlock.BO(), 0)
}

// allocSurfaceState carves one state out of the current surface-state BO.
// Surface states never chain transparently: offsets are relative to the
// surface base address, so the caller must handle errSurfaceStateFull by
// replacing the whole BO.
func (cb *CommandBuffer) allocSurfaceState(size int, align uint) (State, error) {
	offset := memutils.AlignUp(cb.surfaceNext, align)
	if offset+size > cb.surfaceBatchBO.bo.size {
		return State{}, errSurfaceStateFull
	}

	cb.surfaceNext = offset + size
	return State{
		Offset:    offset,
		Map:       cb.surfaceBatchBO.bo.mapped[offset : offset+size],
		AllocSize: size,
	}, nil
}

// newSurfaceStateBO freezes the exhausted surface-state BO's bookkeeping,
// chains a fresh one and re-points the surface base address at it. Every
// surface offset issued so far is now meaningless, so the caller must
// re-emit all active stages' tables.
func (cb *CommandBuffer) newSurfaceStateBO() error {
	oldBBO := cb.surfaceBatchBO
	oldBBO.relocCount = cb.surfaceRelocs.Len() - oldBBO.firstReloc
	oldBBO.length = cb.surfaceNext

	newBBO, err := newBatchBO(cb.device)
	if err != nil {
		return err
	}

	newBBO.firstReloc = cb.surfaceRelocs.Len()
	cb.surfaceNext = 1

	newBBO.prev = oldBBO
	cb.surfaceBatchBO = newBBO

	cb.emitStateBaseAddress()

	// Changing the base address alone does not invalidate previously
	// fetched surface state.
	cb.batch.Emit(gfx8.PipeControl{TextureCacheInvalidate: true})

	return cb.batch.Err()
}

func (cb *CommandBuffer) stageLayout(stage ShaderStage) *PipelineLayout {
	if stage == StageCompute {
		return cb.computePipeline.layout
	}
	return cb.pipeline.layout
}

// emitBindingTable allocates stage's binding table and one surface state per
// filled descriptor slot, recording a surface relocation for each.
func (cb *CommandBuffer) emitBindingTable(stage ShaderStage) (State, error) {
	layout := cb.stageLayout(stage)
	if layout == nil || layout.SurfaceCount(stage) == 0 {
		return State{}, nil
	}

	size := layout.SurfaceCount(stage) * 4
	btState, err := cb.allocSurfaceState(size, 32)
	if err != nil {
		return State{}, err
	}

	for setIndex := range layout.sets {
		set := &layout.sets[setIndex]
		bound := &cb.descriptors[setIndex]
		if bound.set == nil {
			continue
		}

		slots := set.layout.stage[stage].SurfaceSlots
		start := set.surfaceStart[stage]

		for b, slot := range slots {
			view := bound.set.descriptors[slot.Index].View
			if view == nil {
				continue
			}

			state, err := cb.allocSurfaceState(gfx8.SurfaceStateSize, gfx8.SurfaceStateSize)
			if err != nil {
				return State{}, err
			}

			var offset uint64
			if slot.DynamicSlot >= 0 {
				dynamicOffset := bound.dynamicOffsets[slot.DynamicSlot]
				offset = view.offset + uint64(dynamicOffset)
				gfx8.PackState(state.Map, gfx8.BufferSurfaceState{
					Format:      view.format,
					BaseAddress: offset,
					RangeBytes:  view.rng - dynamicOffset,
				})
			} else {
				offset = view.offset
				canonical := cb.device.surfaceStateBlock.Map(
					view.surfaceState.Offset, gfx8.SurfaceStateSize)
				copy(state.Map, canonical)
			}

			// The surface address sits in dwords 8-9 of the state.
			addr := cb.surfaceRelocs.Add(
				state.Offset+gfx8.SurfaceStateAddressByteOffset, view.bo, offset)
			binary.LittleEndian.PutUint64(
				state.Map[gfx8.SurfaceStateAddressByteOffset:], addr)

			binary.LittleEndian.PutUint32(btState.Map[(start+b)*4:], uint32(state.Offset))
		}
	}

	return btState, nil
}

// emitSamplers writes stage's sampler table into the dynamic state stream.
func (cb *CommandBuffer) emitSamplers(stage ShaderStage) (State, error) {
	layout := cb.stageLayout(stage)
	if layout == nil || layout.SamplerCount(stage) == 0 {
		return State{}, nil
	}

	size := layout.SamplerCount(stage) * samplerStateSize
	state, err := cb.dynamicStateStream.Alloc(size, 32)
	if err != nil {
		return State{}, err
	}

	for setIndex := range layout.sets {
		set := &layout.sets[setIndex]
		bound := &cb.descriptors[setIndex]
		if bound.set == nil {
			continue
		}

		slots := set.layout.stage[stage].SamplerSlots
		start := set.samplerStart[stage]

		for b, slot := range slots {
			sampler := bound.set.descriptors[slot.Index].Sampler
			if sampler == nil {
				continue
			}
			copy(state.Map[(start+b)*samplerStateSize:], sampler.state[:])
		}
	}

	return state, nil
}

func (cb *CommandBuffer) flushDescriptorSet(stage ShaderStage) error {
	samplers, err := cb.emitSamplers(stage)
	if err != nil {
		return err
	}
	surfaces, err := cb.emitBindingTable(stage)
	if err != nil {
		return err
	}

	if samplers.AllocSize > 0 {
		cb.batch.Emit(gfx8.SamplerStatePointers{
			SubOpcode: gfx8.SamplerStateSubOpcodes[stage],
			Offset:    uint32(samplers.Offset),
		})
	}
	if surfaces.AllocSize > 0 {
		cb.batch.Emit(gfx8.BindingTablePointers{
			SubOpcode: gfx8.BindingTableSubOpcodes[stage],
			Offset:    uint32(surfaces.Offset),
		})
	}

	return nil
}

// flushDescriptorSets re-emits tables for every dirty stage the bound
// pipeline actually uses. If the surface-state BO fills up mid-way, a fresh
// BO replaces it and every active stage is re-emitted from scratch: offsets
// into the old BO must never survive into the new base address.
func (cb *CommandBuffer) flushDescriptorSets() error {
	dirty := cb.descriptorsDirty & cb.pipeline.activeStages

	var flushErr error
	forEachStage(dirty, func(s ShaderStage) {
		if flushErr == nil {
			flushErr = cb.flushDescriptorSet(s)
		}
	})

	if errors.Is(flushErr, errSurfaceStateFull) {
		if err := cb.newSurfaceStateBO(); err != nil {
			return err
		}

		flushErr = nil
		forEachStage(cb.pipeline.activeStages, func(s ShaderStage) {
			if flushErr == nil {
				flushErr = cb.flushDescriptorSet(s)
			}
		})
	}
	if flushErr != nil {
		return flushErr
	}

	cb.descriptorsDirty &^= cb.pipeline.activeStages
	return nil
}

// emitDynamic streams a state block; mergeDynamic streams the dword-wise OR
// of two blocks.
func (cb *CommandBuffer) emitDynamic(a []uint32, align uint) (State, error) {
	state, err := cb.dynamicStateStream.Alloc(len(a)*4, align)
	if err != nil {
		return State{}, err
	}
	for i, dw := range a {
		binary.LittleEndian.PutUint32(state.Map[i*4:], dw)
	}
	return state, nil
}

func (cb *CommandBuffer) mergeDynamic(a, b []uint32, align uint) (State, error) {
	state, err := cb.dynamicStateStream.Alloc(len(a)*4, align)
	if err != nil {
		return State{}, err
	}
	for i := range a {
		binary.LittleEndian.PutUint32(state.Map[i*4:], a[i]|b[i])
	}
	return state, nil
}

// flushState brings the hardware in line with everything that changed since
// the last draw: pipeline select, dirty+used vertex buffers, the spliced
// pipeline batch, descriptor tables, viewport pointers and the OR-merged
// dynamic state packets.
func (cb *CommandBuffer) flushState() error {
	pipeline := cb.pipeline

	vbEmit := cb.vbDirty & pipeline.vbUsed

	if cb.currentPipeline != int(gfx8.Pipeline3D) {
		cb.batch.Emit(gfx8.PipelineSelect{Selection: gfx8.Pipeline3D})
		cb.currentPipeline = int(gfx8.Pipeline3D)
	}

	if vbEmit != 0 {
		numBuffers := bits.OnesCount32(vbEmit)
		numDwords := 1 + numBuffers*gfx8.VertexBufferStateLength

		dst := cb.batch.EmitDwords(numDwords)
		at := cb.batch.next - numDwords*4 - cb.batch.start

		dwords := make([]uint32, numDwords)
		gfx8.VertexBuffersHeader(dwords, numBuffers)

		i := 0
		for remaining := vbEmit; remaining != 0; {
			vb := bits.TrailingZeros32(remaining)
			remaining &^= 1 << vb

			binding := cb.vertexBindings[vb]
			gfx8.VertexBufferState{
				BufferIndex: uint32(vb),
				Pitch:       pipeline.bindingStride[vb],
				BufferSize:  uint32(uint64(binding.buffer.size) - binding.offset),
			}.Pack(dwords[1+i*gfx8.VertexBufferStateLength:])
			i++
		}
		for j, dw := range dwords {
			binary.LittleEndian.PutUint32(dst[j*4:], dw)
		}

		i = 0
		for remaining := vbEmit; remaining != 0; {
			vb := bits.TrailingZeros32(remaining)
			remaining &^= 1 << vb

			binding := cb.vertexBindings[vb]
			location := at + (1+i*gfx8.VertexBufferStateLength)*4 + gfx8.VertexBufferAddressOffset
			cb.batch.EmitReloc(location, &binding.buffer.bo, binding.buffer.offset+binding.offset)
			i++
		}
	}

	if cb.dirty&dirtyPipeline != 0 {
		// A pipeline compiled after Begin may have grown the scratch pool
		// past what STATE_BASE_ADDRESS was emitted against.
		if cb.scratchSize < pipeline.totalScratch {
			cb.emitStateBaseAddress()
		}

		cb.batch.EmitBatch(&pipeline.batch)
	}

	if cb.descriptorsDirty != 0 {
		if err := cb.flushDescriptorSets(); err != nil {
			return err
		}
	}

	if cb.dirty&dirtyViewport != 0 && cb.vpState != nil {
		cb.batch.Emit(gfx8.ScissorStatePointers{Offset: uint32(cb.vpState.scissor.Offset)})
		cb.batch.Emit(gfx8.ViewportStatePointersCC{Offset: uint32(cb.vpState.cc.Offset)})
		cb.batch.Emit(gfx8.ViewportStatePointersSFClip{Offset: uint32(cb.vpState.sfClip.Offset)})
	}

	if cb.rsState != nil && cb.dirty&(dirtyPipeline|dirtyRaster) != 0 {
		cb.batch.EmitMerge(cb.rsState.sf, pipeline.sf)
		cb.batch.EmitMerge(cb.rsState.raster, pipeline.raster)
	}

	if cb.dsState != nil && cb.dirty&(dirtyPipeline|dirtyDepthStencil) != 0 {
		cb.batch.EmitMerge(cb.dsState.wmDepthStencil, pipeline.wmDepthStencil)
	}

	if cb.dirty&(dirtyColorBlend|dirtyDepthStencil) != 0 {
		var state State
		var err error
		switch {
		case cb.dsState == nil:
			state, err = cb.emitDynamic(cb.cbState.colorCalc, 64)
		case cb.cbState == nil:
			state, err = cb.emitDynamic(cb.dsState.colorCalc, 64)
		default:
			state, err = cb.mergeDynamic(cb.dsState.colorCalc, cb.cbState.colorCalc, 64)
		}
		if err != nil {
			return err
		}

		cb.batch.Emit(gfx8.CCStatePointers{Offset: uint32(state.Offset)})
	}

	if cb.dirty&(dirtyPipeline|dirtyIndexBuffer) != 0 {
		cb.batch.EmitMerge(cb.stateVF, pipeline.vf)
	}

	cb.vbDirty &^= vbEmit
	cb.dirty = 0

	return cb.batch.Err()
}

func (cb *CommandBuffer) flushComputeDescriptorSet() error {
	samplers, err := cb.emitSamplers(StageCompute)
	if err != nil {
		return err
	}
	surfaces, err := cb.emitBindingTable(StageCompute)
	if err != nil {
		return err
	}

	size := gfx8.InterfaceDescriptorDataLength * 4
	state, err := cb.device.dynamicStatePool.Alloc(size, 64)
	if err != nil {
		return err
	}

	gfx8.PackState(state.Map, gfx8.InterfaceDescriptorData{
		KernelStartPointer:  cb.computePipeline.kernelStartPointer,
		BindingTablePointer: uint32(surfaces.Offset),
		SamplerStatePointer: uint32(samplers.Offset),
	})

	cb.batch.Emit(gfx8.MediaInterfaceDescriptorLoad{
		DescriptorLength: uint32(size),
		DescriptorOffset: uint32(state.Offset),
	})

	return nil
}

func (cb *CommandBuffer) flushComputeState() error {
	pipeline := cb.computePipeline

	if cb.currentPipeline != int(gfx8.PipelineGPGPU) {
		cb.batch.Emit(gfx8.PipelineSelect{Selection: gfx8.PipelineGPGPU})
		cb.currentPipeline = int(gfx8.PipelineGPGPU)
	}

	if cb.computeDirty&dirtyPipeline != 0 {
		cb.batch.EmitBatch(&pipeline.batch)
	}

	if cb.descriptorsDirty&core1_0.StageCompute != 0 || cb.computeDirty&dirtyPipeline != 0 {
		err := cb.flushComputeDescriptorSet()
		if errors.Is(err, errSurfaceStateFull) {
			if err = cb.newSurfaceStateBO(); err != nil {
				return err
			}
			err = cb.flushComputeDescriptorSet()
		}
		if err != nil {
			return err
		}
		cb.descriptorsDirty &^= core1_0.StageCompute
	}

	cb.computeDirty = 0

	return cb.batch.Err()
}
