package driver

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gfx8"
)

const maxVertexBuffers = 32

// pipelineBatchSize bounds a pipeline's pre-baked command sequence. The
// content is fixed at build time, so overflow is a programmer error and the
// batch carries no growth policy.
const pipelineBatchSize = 1024

type PipelineBindPoint int

const (
	BindPointGraphics PipelineBindPoint = iota
	BindPointCompute
)

type VertexBinding struct {
	Binding int
	Stride  uint32
}

type GraphicsPipelineInfo struct {
	Layout       *PipelineLayout
	ActiveStages core1_0.ShaderStageFlags

	Topology         uint32
	PrimitiveRestart bool
	VertexBindings   []VertexBinding

	SF           gfx8.StateSF
	Raster       gfx8.StateRaster
	DepthStencil gfx8.StateWMDepthStencil

	TotalScratch int
}

type ComputePipelineInfo struct {
	Layout *PipelineLayout

	KernelStartPointer uint32
	SIMDSize           uint32
	ThreadWidthMax     uint32
	RightMask          uint32

	TotalScratch int
}

// Pipeline is an immutable bundle of pre-encoded commands and baked state
// halves. The owned batch is spliced into command buffers on bind; the
// state halves are OR-merged with the bound dynamic state at flush.
type Pipeline struct {
	layout *PipelineLayout

	batch  Batch
	relocs RelocList

	// Pipeline-owned halves of the merged state packets.
	sf             []uint32
	raster         []uint32
	wmDepthStencil []uint32
	vf             []uint32

	vbUsed        uint32
	bindingStride [maxVertexBuffers]uint32

	activeStages core1_0.ShaderStageFlags
	totalScratch int

	// Compute variant.
	kernelStartPointer uint32
	simdSize           uint32
	threadWidthMax     uint32
	rightMask          uint32
}

func (p *Pipeline) Layout() *PipelineLayout {
	return p.layout
}

func (p *Pipeline) initBatch(size int) {
	p.batch = Batch{
		data:   make([]byte, size),
		end:    size,
		relocs: &p.relocs,
	}
}

func NewGraphicsPipeline(device *Device, info GraphicsPipelineInfo) (*Pipeline, common.VkResult, error) {
	pipeline := &Pipeline{
		layout:       info.Layout,
		activeStages: info.ActiveStages,
		totalScratch: info.TotalScratch,
	}
	pipeline.initBatch(pipelineBatchSize)

	for _, vb := range info.VertexBindings {
		if vb.Binding >= maxVertexBuffers {
			panic("vertex binding index out of range")
		}
		pipeline.vbUsed |= 1 << vb.Binding
		pipeline.bindingStride[vb.Binding] = vb.Stride
	}

	if info.TotalScratch > 0 {
		if err := device.growScratch(info.TotalScratch); err != nil {
			return nil, core1_0.VKErrorOutOfDeviceMemory, err
		}
	}

	// URB partitioning for the geometry stages, then topology. Everything
	// draw-time-dynamic stays out of this batch and goes through the merged
	// state halves instead.
	for slot := 0; slot < 4; slot++ {
		entries := uint32(64)
		if info.ActiveStages&stageFlags[StageVertex+ShaderStage(slot)] == 0 {
			entries = 0
		}
		pipeline.batch.Emit(gfx8.URBAllocation{
			StageSlot:  slot,
			StartSlice: uint32(slot),
			EntrySize:  1,
			Entries:    entries,
		})
	}
	pipeline.batch.Emit(gfx8.StateVFTopology{Topology: info.Topology})
	pipeline.batch.Emit(gfx8.PipeControl{CommandStreamerStall: true})

	pipeline.sf = gfx8.PackDwords(info.SF)
	pipeline.raster = gfx8.PackDwords(info.Raster)
	pipeline.wmDepthStencil = gfx8.PackDwords(info.DepthStencil)
	pipeline.vf = gfx8.PackDwords(gfx8.StateVF{
		IndexedDrawCutIndexEnable: info.PrimitiveRestart,
	})

	return pipeline, core1_0.VKSuccess, nil
}

func NewComputePipeline(device *Device, info ComputePipelineInfo) (*Pipeline, common.VkResult, error) {
	pipeline := &Pipeline{
		layout:             info.Layout,
		activeStages:       core1_0.StageCompute,
		totalScratch:       info.TotalScratch,
		kernelStartPointer: info.KernelStartPointer,
		simdSize:           info.SIMDSize,
		threadWidthMax:     info.ThreadWidthMax,
		rightMask:          info.RightMask,
	}
	pipeline.initBatch(pipelineBatchSize)

	if info.TotalScratch > 0 {
		if err := device.growScratch(info.TotalScratch); err != nil {
			return nil, core1_0.VKErrorOutOfDeviceMemory, err
		}
	}

	at := pipeline.batch.Emit(gfx8.MediaVFEState{
		PerThreadScratch:   scratchLog2(info.TotalScratch),
		MaximumThreads:     64,
		URBEntries:         2,
		URBEntryAllocation: 2,
	})
	if info.TotalScratch > 0 {
		pipeline.batch.EmitReloc(at+gfx8.VFEStateScratchAddressOffset,
			device.scratchBlock.BO(), 0)
	}

	return pipeline, core1_0.VKSuccess, nil
}

// scratchLog2 encodes per-thread scratch space as the hardware's power-of-two
// field, 0 meaning 1KB.
func scratchLog2(size int) uint32 {
	var field uint32
	for per := 1024; per < size; per *= 2 {
		field++
	}
	return field
}
