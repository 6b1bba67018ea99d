package driver

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestViewportStatePacksAllThreeBlocks(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	vp, res, err := NewViewportState(device,
		[]core1_0.Viewport{{X: 10, Y: 20, Width: 200, Height: 100, MinDepth: 0, MaxDepth: 1}},
		[]core1_0.Rect2D{{
			Offset: core1_0.Offset2D{X: 4, Y: 8},
			Extent: core1_0.Extent2D{Width: 100, Height: 50},
		}})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	defer vp.Destroy()

	require.Zero(t, vp.sfClip.Offset%64)

	// Viewport transform: scale in dwords 0-1, translate in 3-4.
	require.Equal(t, f32bits(100), binary.LittleEndian.Uint32(vp.sfClip.Map))
	require.Equal(t, f32bits(50), binary.LittleEndian.Uint32(vp.sfClip.Map[4:]))
	require.Equal(t, f32bits(110), binary.LittleEndian.Uint32(vp.sfClip.Map[12:]))
	require.Equal(t, f32bits(70), binary.LittleEndian.Uint32(vp.sfClip.Map[16:]))

	// Depth range in the CC viewport.
	require.Equal(t, f32bits(0), binary.LittleEndian.Uint32(vp.cc.Map))
	require.Equal(t, f32bits(1), binary.LittleEndian.Uint32(vp.cc.Map[4:]))

	// Scissor corners, inclusive.
	first := binary.LittleEndian.Uint32(vp.scissor.Map)
	second := binary.LittleEndian.Uint32(vp.scissor.Map[4:])
	require.Equal(t, uint32(8<<16|4), first)
	require.Equal(t, uint32(57<<16|103), second)
}

func TestEmptyScissorPacksDegenerate(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	vp, _, err := NewViewportState(device,
		[]core1_0.Viewport{{Width: 1, Height: 1}},
		[]core1_0.Rect2D{{}})
	require.NoError(t, err)
	defer vp.Destroy()

	minDword := binary.LittleEndian.Uint32(vp.scissor.Map)
	maxDword := binary.LittleEndian.Uint32(vp.scissor.Map[4:])
	require.Greater(t, minDword&0xffff, maxDword&0xffff)
	require.Greater(t, minDword>>16, maxDword>>16)
}

func TestRasterStateHalvesStayDisjoint(t *testing.T) {
	rs := NewRasterState(RasterInfo{LineWidth: 2, DepthBiasEnable: true})

	// Dynamic halves leave the header dword to the pipeline.
	require.Zero(t, rs.sf[0])
	require.Zero(t, rs.raster[0])
	require.NotZero(t, rs.sf[1])
}

func TestDepthStencilAndBlendShareColorCalc(t *testing.T) {
	ds := NewDepthStencilState(DepthStencilInfo{
		StencilReference:     0x12,
		BackStencilReference: 0x34,
	})
	cbState := NewColorBlendState([4]float32{1, 0, 0, 1})

	require.Len(t, ds.colorCalc, len(cbState.colorCalc))
	for i := range ds.colorCalc {
		// Each source only sets fields the other leaves zero.
		require.Zero(t, ds.colorCalc[i]&cbState.colorCalc[i])
	}
}
