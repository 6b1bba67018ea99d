package driver

import (
	"encoding/binary"
	"math"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gfx8"
)

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}

// ViewportState bakes viewport and scissor arrays into device-lifetime
// state; the flush only re-emits the pointer packets.
type ViewportState struct {
	device *Device

	sfClip  State
	cc      State
	scissor State
}

func NewViewportState(device *Device, viewports []core1_0.Viewport, scissors []core1_0.Rect2D) (*ViewportState, common.VkResult, error) {
	vp := &ViewportState{device: device}

	var err error
	vp.sfClip, err = device.dynamicStatePool.Alloc(len(viewports)*64, 64)
	if err == nil {
		vp.cc, err = device.dynamicStatePool.Alloc(len(viewports)*8, 32)
	}
	if err == nil {
		vp.scissor, err = device.dynamicStatePool.Alloc(len(scissors)*8, 32)
	}
	if err != nil {
		vp.Destroy()
		return nil, core1_0.VKErrorOutOfHostMemory, err
	}

	for i, viewport := range viewports {
		packSFClipViewport(vp.sfClip.Map[i*64:], viewport)

		binary.LittleEndian.PutUint32(vp.cc.Map[i*8:], f32bits(viewport.MinDepth))
		binary.LittleEndian.PutUint32(vp.cc.Map[i*8+4:], f32bits(viewport.MaxDepth))
	}

	for i, scissor := range scissors {
		packScissor(vp.scissor.Map[i*8:], scissor)
	}

	return vp, core1_0.VKSuccess, nil
}

func (vp *ViewportState) Destroy() {
	vp.device.dynamicStatePool.Free(vp.sfClip)
	vp.device.dynamicStatePool.Free(vp.cc)
	vp.device.dynamicStatePool.Free(vp.scissor)
}

// packSFClipViewport writes one 16-dword SF_CLIP_VIEWPORT element: the
// viewport transform in dwords 0-5, the guardband in dwords 8-11.
func packSFClipViewport(dst []byte, v core1_0.Viewport) {
	halfW := v.Width / 2
	halfH := v.Height / 2

	dwords := [16]uint32{
		0: f32bits(halfW),
		1: f32bits(halfH),
		2: f32bits((v.MaxDepth - v.MinDepth) / 2),
		3: f32bits(v.X + halfW),
		4: f32bits(v.Y + halfH),
		5: f32bits((v.MaxDepth + v.MinDepth) / 2),
		8: f32bits(-1), 9: f32bits(1),
		10: f32bits(-1), 11: f32bits(1),
	}
	for i, dw := range dwords {
		binary.LittleEndian.PutUint32(dst[i*4:], dw)
	}
}

// packScissor writes one 2-dword SCISSOR_RECT element. An empty rectangle
// packs as the hardware's degenerate max<min form.
func packScissor(dst []byte, r core1_0.Rect2D) {
	xMin := uint32(r.Offset.X)
	yMin := uint32(r.Offset.Y)
	xMax := uint32(r.Offset.X + r.Extent.Width - 1)
	yMax := uint32(r.Offset.Y + r.Extent.Height - 1)

	if r.Extent.Width <= 0 || r.Extent.Height <= 0 {
		xMin, yMin = 1, 1
		xMax, yMax = 0, 0
	}

	binary.LittleEndian.PutUint32(dst[0:], yMin<<16|xMin&0xffff)
	binary.LittleEndian.PutUint32(dst[4:], yMax<<16|xMax&0xffff)
}

// RasterState carries the dynamic halves of the SF and raster packets.
type RasterState struct {
	sf     []uint32
	raster []uint32
}

type RasterInfo struct {
	LineWidth float32

	DepthBiasEnable     bool
	DepthBiasConstant   float32
	DepthBiasSlopeScale float32
}

func NewRasterState(info RasterInfo) *RasterState {
	return &RasterState{
		sf: gfx8.PackDwords(gfx8.StateSFDynamic{
			LineWidth: info.LineWidth,
		}),
		raster: gfx8.PackDwords(gfx8.StateRasterDynamic{
			DepthBiasEnable:           info.DepthBiasEnable,
			GlobalDepthOffsetConstant: info.DepthBiasConstant,
			GlobalDepthOffsetScale:    info.DepthBiasSlopeScale,
		}),
	}
}

// DepthStencilState carries the dynamic half of the depth-stencil packet and
// its share of the color-calc block (stencil references).
type DepthStencilState struct {
	wmDepthStencil []uint32
	colorCalc      []uint32
}

type DepthStencilInfo struct {
	StencilReadMask  uint32
	StencilWriteMask uint32

	StencilReference     uint32
	BackStencilReference uint32
}

func NewDepthStencilState(info DepthStencilInfo) *DepthStencilState {
	return &DepthStencilState{
		wmDepthStencil: gfx8.PackDwords(gfx8.StateWMDepthStencilDynamic{
			StencilReadMask:  info.StencilReadMask,
			StencilWriteMask: info.StencilWriteMask,
		}),
		colorCalc: gfx8.PackDwords(gfx8.ColorCalcState{
			StencilReferenceValue:         info.StencilReference,
			BackfaceStencilReferenceValue: info.BackStencilReference,
		}),
	}
}

// ColorBlendState carries the blend-constant share of the color-calc block.
type ColorBlendState struct {
	colorCalc []uint32
}

func NewColorBlendState(blendConstants [4]float32) *ColorBlendState {
	return &ColorBlendState{
		colorCalc: gfx8.PackDwords(gfx8.ColorCalcState{
			BlendConstants: blendConstants,
		}),
	}
}
