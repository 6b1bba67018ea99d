package driver

import (
	"fmt"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ShaderStage is the driver's dense stage numbering, used to index per-stage
// tables. core1_0.ShaderStageFlags is the API-facing mask form.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageTessControl
	StageTessEval
	StageGeometry
	StageFragment
	StageCompute
	stageCount
)

var stageFlags = [stageCount]core1_0.ShaderStageFlags{
	core1_0.StageVertex,
	core1_0.StageTessellationControl,
	core1_0.StageTessellationEvaluation,
	core1_0.StageGeometry,
	core1_0.StageFragment,
	core1_0.StageCompute,
}

func (s ShaderStage) Flag() core1_0.ShaderStageFlags {
	return stageFlags[s]
}

// forEachStage calls f for every stage present in flags, in stage order.
func forEachStage(flags core1_0.ShaderStageFlags, f func(ShaderStage)) {
	for s := StageVertex; s < stageCount; s++ {
		if flags&stageFlags[s] != 0 {
			f(s)
		}
	}
}

// DescriptorKind enumerates every descriptor type the driver binds. Dispatch
// over kinds is exhaustive: classify panics on a kind it does not know so an
// added kind cannot silently fall through.
type DescriptorKind int

const (
	DescriptorSampler DescriptorKind = iota
	DescriptorCombinedImageSampler
	DescriptorSampledImage
	DescriptorStorageImage
	DescriptorUniformTexelBuffer
	DescriptorStorageTexelBuffer
	DescriptorUniformBuffer
	DescriptorStorageBuffer
	DescriptorUniformBufferDynamic
	DescriptorStorageBufferDynamic
	DescriptorInputAttachment
)

var descriptorKindNames = map[DescriptorKind]string{
	DescriptorSampler:              "Sampler",
	DescriptorCombinedImageSampler: "CombinedImageSampler",
	DescriptorSampledImage:         "SampledImage",
	DescriptorStorageImage:         "StorageImage",
	DescriptorUniformTexelBuffer:   "UniformTexelBuffer",
	DescriptorStorageTexelBuffer:   "StorageTexelBuffer",
	DescriptorUniformBuffer:        "UniformBuffer",
	DescriptorStorageBuffer:        "StorageBuffer",
	DescriptorUniformBufferDynamic: "UniformBufferDynamic",
	DescriptorStorageBufferDynamic: "StorageBufferDynamic",
	DescriptorInputAttachment:      "InputAttachment",
}

func (k DescriptorKind) String() string {
	if name, ok := descriptorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DescriptorKind(%d)", int(k))
}

// classify reports which per-stage tables a descriptor of this kind occupies
// and whether it consumes a dynamic offset slot.
func (k DescriptorKind) classify() (surface, sampler, dynamic bool) {
	switch k {
	case DescriptorSampler:
		return false, true, false
	case DescriptorCombinedImageSampler:
		return true, true, false
	case DescriptorSampledImage, DescriptorStorageImage,
		DescriptorUniformTexelBuffer, DescriptorStorageTexelBuffer,
		DescriptorUniformBuffer, DescriptorStorageBuffer,
		DescriptorInputAttachment:
		return true, false, false
	case DescriptorUniformBufferDynamic, DescriptorStorageBufferDynamic:
		return true, false, true
	default:
		panic(fmt.Sprintf("unhandled descriptor kind %s", k))
	}
}

// DescriptorSlot maps one per-stage table entry back to the flat descriptor
// array. DynamicSlot is the index into the bound set's dynamic offsets, or
// -1 for statically bound descriptors.
type DescriptorSlot struct {
	Index       int
	DynamicSlot int
}

// StageLayout is one stage's view of a set layout: which descriptors occupy
// its surface and sampler tables, in table order.
type StageLayout struct {
	SurfaceSlots []DescriptorSlot
	SamplerSlots []DescriptorSlot
}

// DescriptorBinding describes one binding in a set layout.
type DescriptorBinding struct {
	Kind   DescriptorKind
	Count  int
	Stages core1_0.ShaderStageFlags
}

// DescriptorSetLayout precomputes, per shader stage, the slot tables that
// binding-table and sampler emission walk at flush time.
type DescriptorSetLayout struct {
	bindings []DescriptorBinding
	// descriptorIndex[b] is the flat array start of binding b.
	descriptorIndex []int

	stage [stageCount]StageLayout

	size               int
	dynamicBufferCount int
	stages             core1_0.ShaderStageFlags
}

func NewDescriptorSetLayout(bindings []DescriptorBinding) *DescriptorSetLayout {
	layout := &DescriptorSetLayout{
		bindings:        bindings,
		descriptorIndex: make([]int, len(bindings)),
	}

	for b, binding := range bindings {
		count := binding.Count
		if count < 1 {
			count = 1
		}
		layout.descriptorIndex[b] = layout.size

		surface, sampler, dynamic := binding.Kind.classify()

		dynamicSlot := -1
		if dynamic {
			dynamicSlot = layout.dynamicBufferCount
			layout.dynamicBufferCount += count
		}

		forEachStage(binding.Stages, func(s ShaderStage) {
			for i := 0; i < count; i++ {
				slot := DescriptorSlot{
					Index:       layout.descriptorIndex[b] + i,
					DynamicSlot: -1,
				}
				if dynamicSlot >= 0 {
					slot.DynamicSlot = dynamicSlot + i
				}
				if surface {
					layout.stage[s].SurfaceSlots = append(layout.stage[s].SurfaceSlots, slot)
				}
				if sampler {
					layout.stage[s].SamplerSlots = append(layout.stage[s].SamplerSlots, slot)
				}
			}
		})

		layout.size += count
		layout.stages |= binding.Stages
	}

	return layout
}

func (l *DescriptorSetLayout) DynamicBufferCount() int {
	return l.dynamicBufferCount
}

// Stages returns the union of all stages any binding in this layout touches.
func (l *DescriptorSetLayout) Stages() core1_0.ShaderStageFlags {
	return l.stages
}

// PipelineLayout pastes descriptor set layouts together and precomputes each
// set's start position within every stage's combined tables.
type PipelineLayout struct {
	sets []pipelineLayoutSet

	stageSurfaceCount [stageCount]int
	stageSamplerCount [stageCount]int
}

type pipelineLayoutSet struct {
	layout *DescriptorSetLayout

	surfaceStart [stageCount]int
	samplerStart [stageCount]int
}

func NewPipelineLayout(setLayouts []*DescriptorSetLayout) *PipelineLayout {
	layout := &PipelineLayout{
		sets: make([]pipelineLayoutSet, len(setLayouts)),
	}

	for i, setLayout := range setLayouts {
		set := &layout.sets[i]
		set.layout = setLayout

		for s := StageVertex; s < stageCount; s++ {
			set.surfaceStart[s] = layout.stageSurfaceCount[s]
			set.samplerStart[s] = layout.stageSamplerCount[s]

			layout.stageSurfaceCount[s] += len(setLayout.stage[s].SurfaceSlots)
			layout.stageSamplerCount[s] += len(setLayout.stage[s].SamplerSlots)
		}
	}

	return layout
}

func (l *PipelineLayout) SurfaceCount(stage ShaderStage) int {
	return l.stageSurfaceCount[stage]
}

func (l *PipelineLayout) SamplerCount(stage ShaderStage) int {
	return l.stageSamplerCount[stage]
}

// Descriptor is one filled slot of a descriptor set.
type Descriptor struct {
	Kind    DescriptorKind
	View    *SurfaceView
	Sampler *Sampler
}

// DescriptorSet holds the flat descriptor array for one set layout. A set
// may be partially filled; unwritten slots are skipped at flush time.
type DescriptorSet struct {
	layout      *DescriptorSetLayout
	descriptors []Descriptor
}

func NewDescriptorSet(layout *DescriptorSetLayout) *DescriptorSet {
	return &DescriptorSet{
		layout:      layout,
		descriptors: make([]Descriptor, layout.size),
	}
}

// WriteDescriptor is one pending descriptor update.
type WriteDescriptor struct {
	Set     *DescriptorSet
	Binding int
	Element int
	Kind    DescriptorKind

	View    *SurfaceView
	Sampler *Sampler

	// Buffer fields, consumed by the buffer kinds.
	Buffer *Buffer
	Format uint32
	Offset uint64
	Range  uint32
}

// UpdateDescriptorSets applies writes. Buffer kinds bake a surface view over
// the given range; dynamic buffer kinds use the full remaining buffer size
// as the range and leave range checking to shader code, with the actual
// offset applied at flush time.
func (d *Device) UpdateDescriptorSets(writes []WriteDescriptor) (common.VkResult, error) {
	for _, write := range writes {
		index := write.Set.layout.descriptorIndex[write.Binding] + write.Element
		desc := &write.Set.descriptors[index]

		switch write.Kind {
		case DescriptorSampler:
			desc.Kind = write.Kind
			desc.Sampler = write.Sampler

		case DescriptorCombinedImageSampler:
			desc.Kind = write.Kind
			desc.View = write.View
			if write.Sampler != nil {
				desc.Sampler = write.Sampler
			}

		case DescriptorSampledImage, DescriptorStorageImage, DescriptorInputAttachment:
			desc.Kind = write.Kind
			desc.View = write.View

		case DescriptorUniformTexelBuffer, DescriptorStorageTexelBuffer,
			DescriptorUniformBuffer, DescriptorStorageBuffer:
			view, res, err := d.NewBufferView(write.Buffer, write.Format, write.Offset, write.Range)
			if err != nil {
				return res, err
			}
			desc.Kind = write.Kind
			desc.View = view

		case DescriptorUniformBufferDynamic, DescriptorStorageBufferDynamic:
			rng := uint32(uint64(write.Buffer.size) - write.Offset)
			view, res, err := d.NewBufferView(write.Buffer, write.Format, write.Offset, rng)
			if err != nil {
				return res, err
			}
			desc.Kind = write.Kind
			desc.View = view

		default:
			panic(fmt.Sprintf("unhandled descriptor kind %s", write.Kind))
		}
	}

	return core1_0.VKSuccess, nil
}
