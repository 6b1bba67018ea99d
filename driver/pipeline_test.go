package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gfx8"
)

func TestGraphicsPipelineBakesVertexBindings(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	pipeline, res, err := NewGraphicsPipeline(device, GraphicsPipelineInfo{
		Layout:       NewPipelineLayout(nil),
		ActiveStages: core1_0.StageVertex,
		VertexBindings: []VertexBinding{
			{Binding: 0, Stride: 16},
			{Binding: 5, Stride: 32},
		},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	require.Equal(t, uint32(1|1<<5), pipeline.vbUsed)
	require.Equal(t, uint32(16), pipeline.bindingStride[0])
	require.Equal(t, uint32(32), pipeline.bindingStride[5])

	// The baked batch carries URB setup, topology and a stall.
	require.NotZero(t, pipeline.batch.Used())
	require.Zero(t, pipeline.relocs.Len())

	require.Len(t, pipeline.sf, gfx8.StateSFLength)
	require.Len(t, pipeline.raster, gfx8.StateRasterLength)
	require.Len(t, pipeline.wmDepthStencil, gfx8.StateWMDepthStencilLength)
	require.Len(t, pipeline.vf, gfx8.StateVFLength)

	require.Panics(t, func() {
		NewGraphicsPipeline(device, GraphicsPipelineInfo{
			Layout:         NewPipelineLayout(nil),
			VertexBindings: []VertexBinding{{Binding: maxVertexBuffers}},
		})
	})
}

func TestGraphicsPipelinePrimitiveRestartBit(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	plain, _, err := NewGraphicsPipeline(device, GraphicsPipelineInfo{
		Layout: NewPipelineLayout(nil),
	})
	require.NoError(t, err)
	require.Zero(t, plain.vf[0]&(1<<8))

	restart, _, err := NewGraphicsPipeline(device, GraphicsPipelineInfo{
		Layout:           NewPipelineLayout(nil),
		PrimitiveRestart: true,
	})
	require.NoError(t, err)
	require.NotZero(t, restart.vf[0]&(1<<8))
}

func TestComputePipelineScratchRelocation(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	noScratch, _, err := NewComputePipeline(device, ComputePipelineInfo{
		Layout:   NewPipelineLayout(nil),
		SIMDSize: 8,
	})
	require.NoError(t, err)
	require.Zero(t, noScratch.relocs.Len())
	require.Zero(t, device.scratchSize())

	withScratch, _, err := NewComputePipeline(device, ComputePipelineInfo{
		Layout:       NewPipelineLayout(nil),
		SIMDSize:     16,
		TotalScratch: 4096,
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, device.scratchSize(), 4096)
	require.Equal(t, 1, withScratch.relocs.Len())
	require.Same(t, device.scratchBlock.BO(), withScratch.relocs.Target(0))
}
