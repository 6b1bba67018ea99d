package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestDescriptorSetLayoutSlotAssignment(t *testing.T) {
	layout := NewDescriptorSetLayout([]DescriptorBinding{
		{Kind: DescriptorCombinedImageSampler, Count: 2, Stages: core1_0.StageFragment},
		{Kind: DescriptorUniformBuffer, Count: 1, Stages: core1_0.StageVertex | core1_0.StageFragment},
		{Kind: DescriptorUniformBufferDynamic, Count: 2, Stages: core1_0.StageVertex},
	})

	require.Equal(t, 5, layout.size)
	require.Equal(t, 2, layout.DynamicBufferCount())
	require.Equal(t, core1_0.StageVertex|core1_0.StageFragment, layout.Stages())

	// Fragment sees the two combined image samplers in both tables, plus
	// the shared uniform buffer in the surface table only.
	frag := layout.stage[StageFragment]
	require.Len(t, frag.SurfaceSlots, 3)
	require.Len(t, frag.SamplerSlots, 2)
	require.Equal(t, DescriptorSlot{Index: 0, DynamicSlot: -1}, frag.SurfaceSlots[0])
	require.Equal(t, DescriptorSlot{Index: 1, DynamicSlot: -1}, frag.SurfaceSlots[1])
	require.Equal(t, DescriptorSlot{Index: 2, DynamicSlot: -1}, frag.SurfaceSlots[2])

	// Vertex sees the uniform buffer and both dynamic buffers, with
	// dynamic offset slots assigned in declaration order.
	vert := layout.stage[StageVertex]
	require.Len(t, vert.SurfaceSlots, 3)
	require.Empty(t, vert.SamplerSlots)
	require.Equal(t, DescriptorSlot{Index: 3, DynamicSlot: 0}, vert.SurfaceSlots[1])
	require.Equal(t, DescriptorSlot{Index: 4, DynamicSlot: 1}, vert.SurfaceSlots[2])

	require.Empty(t, layout.stage[StageCompute].SurfaceSlots)
}

func TestPipelineLayoutBiasesSetStarts(t *testing.T) {
	setA := NewDescriptorSetLayout([]DescriptorBinding{
		{Kind: DescriptorUniformBuffer, Count: 2, Stages: core1_0.StageVertex},
	})
	setB := NewDescriptorSetLayout([]DescriptorBinding{
		{Kind: DescriptorStorageBuffer, Count: 1, Stages: core1_0.StageVertex},
	})

	layout := NewPipelineLayout([]*DescriptorSetLayout{setA, setB})

	require.Equal(t, 3, layout.SurfaceCount(StageVertex))
	require.Zero(t, layout.sets[0].surfaceStart[StageVertex])
	require.Equal(t, 2, layout.sets[1].surfaceStart[StageVertex])
	require.Zero(t, layout.SurfaceCount(StageFragment))
}

func TestUpdateDescriptorSetsBakesBufferViews(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	layout := NewDescriptorSetLayout([]DescriptorBinding{
		{Kind: DescriptorUniformBuffer, Count: 1, Stages: core1_0.StageVertex},
		{Kind: DescriptorStorageBufferDynamic, Count: 1, Stages: core1_0.StageVertex},
	})
	set := NewDescriptorSet(layout)

	buffer, _, err := device.AllocBuffer(8192)
	require.NoError(t, err)
	defer buffer.Destroy()

	res, err := device.UpdateDescriptorSets([]WriteDescriptor{
		{Set: set, Binding: 0, Kind: DescriptorUniformBuffer,
			Buffer: buffer, Format: testFormatRaw, Offset: 256, Range: 512},
		{Set: set, Binding: 1, Kind: DescriptorStorageBufferDynamic,
			Buffer: buffer, Format: testFormatRaw, Offset: 4096},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	static := set.descriptors[0]
	require.Equal(t, DescriptorUniformBuffer, static.Kind)
	require.Equal(t, uint64(256), static.View.offset)
	require.Equal(t, uint32(512), static.View.rng)

	// Dynamic descriptors cover the whole tail of the buffer; the bound
	// offset narrows it at flush time.
	dynamic := set.descriptors[1]
	require.Equal(t, uint64(4096), dynamic.View.offset)
	require.Equal(t, uint32(8192-4096), dynamic.View.rng)
}

func TestForEachStageOrder(t *testing.T) {
	var visited []ShaderStage
	forEachStage(core1_0.StageFragment|core1_0.StageVertex|core1_0.StageCompute,
		func(s ShaderStage) {
			visited = append(visited, s)
		})
	require.Equal(t, []ShaderStage{StageVertex, StageFragment, StageCompute}, visited)
}
