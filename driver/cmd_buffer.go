package driver

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gem"
	"github.com/gqmelo/mesa/gfx8"
)

const (
	maxDescriptorSets = 8
	relocListStartCap = 256
)

type dirtyBits uint32

const (
	dirtyPipeline dirtyBits = 1 << iota
	dirtyViewport
	dirtyRaster
	dirtyColorBlend
	dirtyDepthStencil
	dirtyIndexBuffer
)

type cmdBufferStatus int

const (
	statusInitial cmdBufferStatus = iota
	statusRecording
	statusExecutable
)

type vertexBinding struct {
	buffer *Buffer
	offset uint64
}

type descriptorSetBinding struct {
	set            *DescriptorSet
	dynamicOffsets []uint32
}

// pipelineUnbound is the pipeline-select sentinel Begin resets to, so the
// first flush always emits PIPELINE_SELECT.
const pipelineUnbound = -1

// CommandBuffer records GPU commands into a chain of batch BOs and turns
// them into one kernel submission at End. Exactly one goroutine may record
// into a command buffer at a time; the batch, relocation and dirty-state
// machinery carries no locks of its own.
type CommandBuffer struct {
	device *Device

	batch       Batch
	batchRelocs RelocList
	lastBatchBO *batchBO

	// Surface states and binding tables accumulate in their own chain with
	// their own relocations. surfaceNext starts at 1 so a zero binding-table
	// offset is never a valid allocation.
	surfaceBatchBO *batchBO
	surfaceRelocs  RelocList
	surfaceNext    int

	dynamicStateStream StateStream

	status          cmdBufferStatus
	currentPipeline int

	dirty            dirtyBits
	computeDirty     dirtyBits
	vbDirty          uint32
	descriptorsDirty core1_0.ShaderStageFlags

	pipeline        *Pipeline
	computePipeline *Pipeline
	vpState         *ViewportState
	rsState         *RasterState
	cbState         *ColorBlendState
	dsState         *DepthStencilState

	vertexBindings [maxVertexBuffers]vertexBinding
	descriptors    [maxDescriptorSets]descriptorSetBinding

	// Index-buffer-owned half of the VF packet.
	stateVF []uint32

	// Scratch size STATE_BASE_ADDRESS was last emitted against.
	scratchSize int

	// Submission assembly scratch, rebuilt on every submit.
	execObjects []gem.ExecObject
	execBOs     []*BO
	boCount     int
	execbuf     gem.ExecBuffer
	needReloc   bool
}

func NewCommandBuffer(device *Device) (*CommandBuffer, common.VkResult, error) {
	cb := &CommandBuffer{
		device:          device,
		surfaceNext:     1,
		currentPipeline: pipelineUnbound,
		stateVF:         make([]uint32, gfx8.StateVFLength),
	}

	cb.batchRelocs.Init(relocListStartCap)
	cb.surfaceRelocs.Init(relocListStartCap)
	cb.batch.relocs = &cb.batchRelocs
	cb.batch.extend = cb.chainBatch

	var err error
	cb.lastBatchBO, err = newBatchBO(device)
	if err != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}
	cb.lastBatchBO.start(&cb.batch, batchTailReserve)

	cb.surfaceBatchBO, err = newBatchBO(device)
	if err != nil {
		cb.lastBatchBO.destroy(device)
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}

	cb.dynamicStateStream.Init(&device.dynamicStateBlock)

	return cb, core1_0.VKSuccess, nil
}

func (cb *CommandBuffer) Destroy() {
	for bbo := cb.lastBatchBO; bbo != nil; {
		prev := bbo.prev
		bbo.destroy(cb.device)
		bbo = prev
	}
	cb.lastBatchBO = nil

	for bbo := cb.surfaceBatchBO; bbo != nil; {
		prev := bbo.prev
		bbo.destroy(cb.device)
		bbo = prev
	}
	cb.surfaceBatchBO = nil

	cb.dynamicStateStream.Reset()
}

func (cb *CommandBuffer) assertRecording() {
	if cb.status == statusExecutable {
		panic("recording into a command buffer that has ended; reset it first")
	}
	cb.status = statusRecording
}

// Begin starts recording: the four state base addresses are re-emitted and
// pipeline-select tracking resets to unbound.
func (cb *CommandBuffer) Begin() (common.VkResult, error) {
	cb.assertRecording()

	cb.emitStateBaseAddress()
	cb.currentPipeline = pipelineUnbound

	if err := cb.batch.Err(); err != nil {
		return core1_0.VKErrorOutOfDeviceMemory, err
	}
	return core1_0.VKSuccess, nil
}

// End emits the end-of-batch sentinel, pads to an even dword count and
// freezes both chains' bookkeeping. Any latched recording failure fails the
// whole End; nothing is partially submittable.
func (cb *CommandBuffer) End() (common.VkResult, error) {
	cb.assertRecording()

	cb.batch.Emit(gfx8.MIBatchBufferEnd{})
	if cb.batch.Used()%8 != 0 {
		cb.batch.Emit(gfx8.MINoop{})
	}

	cb.lastBatchBO.finish(&cb.batch)
	cb.surfaceBatchBO.relocCount = cb.surfaceRelocs.Len() - cb.surfaceBatchBO.firstReloc
	cb.surfaceBatchBO.length = cb.surfaceNext

	if err := cb.batch.Err(); err != nil {
		return core1_0.VKErrorOutOfDeviceMemory, err
	}

	cb.status = statusExecutable
	return core1_0.VKSuccess, nil
}

// Reset returns the command buffer to its initial state, keeping the first
// BO of each chain. Calling it on an already-reset buffer is a no-op.
func (cb *CommandBuffer) Reset() (common.VkResult, error) {
	for cb.lastBatchBO.prev != nil {
		prev := cb.lastBatchBO.prev
		cb.lastBatchBO.destroy(cb.device)
		cb.lastBatchBO = prev
	}
	cb.batchRelocs.Clear()
	cb.batch.err = nil
	cb.lastBatchBO.start(&cb.batch, batchTailReserve)

	for cb.surfaceBatchBO.prev != nil {
		prev := cb.surfaceBatchBO.prev
		cb.surfaceBatchBO.destroy(cb.device)
		cb.surfaceBatchBO = prev
	}
	cb.surfaceRelocs.Clear()
	cb.surfaceBatchBO.firstReloc = 0
	cb.surfaceBatchBO.relocCount = 0
	cb.surfaceBatchBO.length = 0
	cb.surfaceNext = 1

	cb.dynamicStateStream.Reset()

	cb.status = statusInitial
	cb.currentPipeline = pipelineUnbound
	cb.dirty = 0
	cb.computeDirty = 0
	cb.vbDirty = 0
	cb.descriptorsDirty = 0
	cb.pipeline = nil
	cb.computePipeline = nil
	cb.vpState = nil
	cb.rsState = nil
	cb.cbState = nil
	cb.dsState = nil
	for i := range cb.stateVF {
		cb.stateVF[i] = 0
	}

	return core1_0.VKSuccess, nil
}

func (cb *CommandBuffer) BindPipeline(bindPoint PipelineBindPoint, pipeline *Pipeline) {
	cb.assertRecording()

	switch bindPoint {
	case BindPointCompute:
		cb.computePipeline = pipeline
		cb.computeDirty |= dirtyPipeline

	case BindPointGraphics:
		cb.pipeline = pipeline
		cb.vbDirty |= pipeline.vbUsed
		cb.dirty |= dirtyPipeline

	default:
		panic("invalid pipeline bind point")
	}
}

// BindDescriptorSets binds sets starting at firstSet. dynamicOffsets are
// consumed in set order, one per dynamic buffer the set's layout declares.
func (cb *CommandBuffer) BindDescriptorSets(firstSet int, sets []*DescriptorSet, dynamicOffsets []uint32) {
	cb.assertRecording()

	if firstSet+len(sets) > maxDescriptorSets {
		panic("descriptor set index out of range")
	}

	dynamicSlot := 0
	for i, set := range sets {
		binding := &cb.descriptors[firstSet+i]
		binding.set = set

		count := set.layout.dynamicBufferCount
		binding.dynamicOffsets = append(binding.dynamicOffsets[:0],
			dynamicOffsets[dynamicSlot:dynamicSlot+count]...)
		dynamicSlot += count

		cb.descriptorsDirty |= set.layout.stages
	}
}

func (cb *CommandBuffer) BindVertexBuffers(firstBinding int, buffers []*Buffer, offsets []uint64) {
	cb.assertRecording()

	if firstBinding+len(buffers) > maxVertexBuffers {
		panic("vertex buffer binding out of range")
	}

	// Buffer strides come from the pipeline, so the packet itself waits
	// until flush.
	for i, buffer := range buffers {
		cb.vertexBindings[firstBinding+i] = vertexBinding{
			buffer: buffer,
			offset: offsets[i],
		}
		cb.vbDirty |= 1 << (firstBinding + i)
	}
}

func (cb *CommandBuffer) BindIndexBuffer(buffer *Buffer, offset uint64, indexType core1_0.IndexType) {
	cb.assertRecording()

	format := gfx8.IndexFormatDword
	cutIndex := uint32(0xffffffff)
	if indexType == core1_0.IndexTypeUInt16 {
		format = gfx8.IndexFormatWord
		cutIndex = 0xffff
	}

	gfx8.StateVF{CutIndex: cutIndex}.Pack(cb.stateVF)
	cb.dirty |= dirtyIndexBuffer

	at := cb.batch.Emit(gfx8.IndexBufferState{
		Format:     format,
		BufferSize: uint32(uint64(buffer.size) - offset),
	})
	cb.batch.EmitReloc(at+gfx8.IndexBufferAddressOffset, &buffer.bo, buffer.offset+offset)
}

func (cb *CommandBuffer) BindViewportState(vp *ViewportState) {
	cb.assertRecording()
	cb.vpState = vp
	cb.dirty |= dirtyViewport
}

func (cb *CommandBuffer) BindRasterState(rs *RasterState) {
	cb.assertRecording()
	cb.rsState = rs
	cb.dirty |= dirtyRaster
}

func (cb *CommandBuffer) BindColorBlendState(cbState *ColorBlendState) {
	cb.assertRecording()
	cb.cbState = cbState
	cb.dirty |= dirtyColorBlend
}

func (cb *CommandBuffer) BindDepthStencilState(ds *DepthStencilState) {
	cb.assertRecording()
	cb.dsState = ds
	cb.dirty |= dirtyDepthStencil
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) error {
	cb.assertRecording()

	if err := cb.flushState(); err != nil {
		return err
	}

	cb.batch.Emit(gfx8.Primitive3D{
		VertexAccessType:       gfx8.VertexAccessSequential,
		VertexCountPerInstance: uint32(vertexCount),
		StartVertexLocation:    uint32(firstVertex),
		InstanceCount:          uint32(instanceCount),
		StartInstanceLocation:  uint32(firstInstance),
	})
	return cb.batch.Err()
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) error {
	cb.assertRecording()

	if err := cb.flushState(); err != nil {
		return err
	}

	cb.batch.Emit(gfx8.Primitive3D{
		VertexAccessType:       gfx8.VertexAccessRandom,
		VertexCountPerInstance: uint32(indexCount),
		StartVertexLocation:    uint32(firstIndex),
		InstanceCount:          uint32(instanceCount),
		StartInstanceLocation:  uint32(firstInstance),
		BaseVertexLocation:     int32(vertexOffset),
	})
	return cb.batch.Err()
}

// Draw parameter registers the indirect paths load from memory.
const (
	reg3DPrimStartVertex   = 0x2430
	reg3DPrimVertexCount   = 0x2434
	reg3DPrimInstanceCount = 0x2438
	reg3DPrimStartInstance = 0x243c
	reg3DPrimBaseVertex    = 0x2440

	regDispatchDimX = 0x2500
	regDispatchDimY = 0x2504
	regDispatchDimZ = 0x2508
)

func (cb *CommandBuffer) loadRegisterMem(reg uint32, buffer *Buffer, offset uint64) {
	at := cb.batch.Emit(gfx8.MILoadRegisterMem{Register: reg})
	cb.batch.EmitReloc(at+gfx8.LoadRegisterMemAddressOffset, &buffer.bo, buffer.offset+offset)
}

func (cb *CommandBuffer) loadRegisterImm(reg, value uint32) {
	cb.batch.Emit(gfx8.MILoadRegisterImm{Register: reg, Value: value})
}

func (cb *CommandBuffer) DrawIndirect(buffer *Buffer, offset uint64) error {
	cb.assertRecording()

	if err := cb.flushState(); err != nil {
		return err
	}

	cb.loadRegisterMem(reg3DPrimVertexCount, buffer, offset)
	cb.loadRegisterMem(reg3DPrimInstanceCount, buffer, offset+4)
	cb.loadRegisterMem(reg3DPrimStartVertex, buffer, offset+8)
	cb.loadRegisterMem(reg3DPrimStartInstance, buffer, offset+12)
	cb.loadRegisterImm(reg3DPrimBaseVertex, 0)

	cb.batch.Emit(gfx8.Primitive3D{
		IndirectParameterEnable: true,
		VertexAccessType:        gfx8.VertexAccessSequential,
	})
	return cb.batch.Err()
}

func (cb *CommandBuffer) DrawIndexedIndirect(buffer *Buffer, offset uint64) error {
	cb.assertRecording()

	if err := cb.flushState(); err != nil {
		return err
	}

	cb.loadRegisterMem(reg3DPrimVertexCount, buffer, offset)
	cb.loadRegisterMem(reg3DPrimInstanceCount, buffer, offset+4)
	cb.loadRegisterMem(reg3DPrimStartVertex, buffer, offset+8)
	cb.loadRegisterMem(reg3DPrimBaseVertex, buffer, offset+12)
	cb.loadRegisterMem(reg3DPrimStartInstance, buffer, offset+16)

	cb.batch.Emit(gfx8.Primitive3D{
		IndirectParameterEnable: true,
		VertexAccessType:        gfx8.VertexAccessRandom,
	})
	return cb.batch.Err()
}

func (cb *CommandBuffer) Dispatch(x, y, z int) error {
	cb.assertRecording()

	if err := cb.flushComputeState(); err != nil {
		return err
	}

	pipeline := cb.computePipeline
	cb.batch.Emit(gfx8.GPGPUWalker{
		SIMDSize:            pipeline.simdSize / 16,
		ThreadWidthMax:      pipeline.threadWidthMax,
		GroupCountX:         uint32(x),
		GroupCountY:         uint32(y),
		GroupCountZ:         uint32(z),
		RightExecutionMask:  pipeline.rightMask,
		BottomExecutionMask: 0xffffffff,
	})
	cb.batch.Emit(gfx8.MediaStateFlush{})
	return cb.batch.Err()
}

func (cb *CommandBuffer) DispatchIndirect(buffer *Buffer, offset uint64) error {
	cb.assertRecording()

	if err := cb.flushComputeState(); err != nil {
		return err
	}

	cb.loadRegisterMem(regDispatchDimX, buffer, offset)
	cb.loadRegisterMem(regDispatchDimY, buffer, offset+4)
	cb.loadRegisterMem(regDispatchDimZ, buffer, offset+8)

	pipeline := cb.computePipeline
	cb.batch.Emit(gfx8.GPGPUWalker{
		IndirectParameterEnable: true,
		SIMDSize:                pipeline.simdSize / 16,
		ThreadWidthMax:          pipeline.threadWidthMax,
		RightExecutionMask:      pipeline.rightMask,
		BottomExecutionMask:     0xffffffff,
	})
	cb.batch.Emit(gfx8.MediaStateFlush{})
	return cb.batch.Err()
}
