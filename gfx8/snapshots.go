package gfx8

// State snapshots are packets whose bitfields come from two logical sources:
// the pipeline bakes its half at build time and the dynamic state object
// bakes the other at bind time. The two images are combined by dword-wise OR
// at flush, so each source must leave the other's fields zero.

// Dword lengths of the snapshot packets.
const (
	StateSFLength             = 4
	StateRasterLength         = 5
	StateWMDepthStencilLength = 3
	StateVFLength             = 2
	ColorCalcStateLength      = 6
)

// StateSF carries the pipeline-owned half of 3DSTATE_SF.
type StateSF struct {
	TriangleStripListProvokingVertex uint32
	LineStripListProvokingVertex     uint32
	ViewportTransformEnable          bool
}

func (StateSF) Length() int { return StateSFLength }

func (p StateSF) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x13, StateSFLength)
	var bits uint32
	if p.ViewportTransformEnable {
		bits |= 1 << 1
	}
	dst[1] = bits
	dst[2] = p.TriangleStripListProvokingVertex<<29 | p.LineStripListProvokingVertex<<27
	dst[3] = 0
}

// StateSFDynamic carries the raster-state-owned half of 3DSTATE_SF.
type StateSFDynamic struct {
	LineWidth float32 // packed as U3.7
}

func (StateSFDynamic) Length() int { return StateSFLength }

func (p StateSFDynamic) Pack(dst []uint32) {
	dst[0] = 0
	width := uint32(p.LineWidth * 128)
	if width > 0x3ff {
		width = 0x3ff
	}
	dst[1] = width << 18
	dst[2] = 0
	dst[3] = 0
}

// StateRaster carries the pipeline-owned half of 3DSTATE_RASTER.
type StateRaster struct {
	CullMode               uint32
	FrontWinding           uint32
	FrontFaceFillMode      uint32
	BackFaceFillMode       uint32
	ScissorRectangleEnable bool
}

func (StateRaster) Length() int { return StateRasterLength }

func (p StateRaster) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x50, StateRasterLength)
	bits := p.CullMode<<16 | p.FrontWinding<<21 | p.FrontFaceFillMode<<5 | p.BackFaceFillMode<<3
	if p.ScissorRectangleEnable {
		bits |= 1 << 1
	}
	dst[1] = bits
	dst[2] = 0
	dst[3] = 0
	dst[4] = 0
}

// StateRasterDynamic carries the raster-state-owned half of 3DSTATE_RASTER.
type StateRasterDynamic struct {
	DepthBiasEnable           bool
	GlobalDepthOffsetConstant float32
	GlobalDepthOffsetScale    float32
}

func (StateRasterDynamic) Length() int { return StateRasterLength }

func (p StateRasterDynamic) Pack(dst []uint32) {
	dst[0] = 0
	var bits uint32
	if p.DepthBiasEnable {
		bits |= 1<<26 | 1<<25 | 1<<24
	}
	dst[1] = bits
	dst[2] = f32bits(p.GlobalDepthOffsetConstant)
	dst[3] = f32bits(p.GlobalDepthOffsetScale)
	dst[4] = 0
}

// StateWMDepthStencil carries the pipeline-owned half of
// 3DSTATE_WM_DEPTH_STENCIL.
type StateWMDepthStencil struct {
	DepthTestEnable        bool
	DepthWriteEnable       bool
	DepthTestFunction      uint32
	StencilTestEnable      bool
	StencilFailOp          uint32
	StencilPassDepthPassOp uint32
}

func (StateWMDepthStencil) Length() int { return StateWMDepthStencilLength }

func (p StateWMDepthStencil) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x4e, StateWMDepthStencilLength)
	var bits uint32
	if p.DepthTestEnable {
		bits |= 1 << 1
	}
	if p.DepthWriteEnable {
		bits |= 1 << 0
	}
	bits |= p.DepthTestFunction << 5
	if p.StencilTestEnable {
		bits |= 1 << 3
	}
	bits |= p.StencilFailOp<<29 | p.StencilPassDepthPassOp<<23
	dst[1] = bits
	dst[2] = 0
}

// StateWMDepthStencilDynamic carries the depth-stencil-state-owned half:
// masks and reference plumbing that are dynamic in the API.
type StateWMDepthStencilDynamic struct {
	StencilReadMask  uint32
	StencilWriteMask uint32
}

func (StateWMDepthStencilDynamic) Length() int { return StateWMDepthStencilLength }

func (p StateWMDepthStencilDynamic) Pack(dst []uint32) {
	dst[0] = 0
	dst[1] = 0
	dst[2] = (p.StencilReadMask&0xff)<<24 | (p.StencilWriteMask&0xff)<<16
}

// StateVF carries the cut-index half of 3DSTATE_VF, owned by the index
// buffer binding; the pipeline bakes the enable bit.
type StateVF struct {
	IndexedDrawCutIndexEnable bool
	CutIndex                  uint32
}

func (StateVF) Length() int { return StateVFLength }

func (p StateVF) Pack(dst []uint32) {
	header := gfxHeader(3, 0, 0x0c, StateVFLength)
	if p.IndexedDrawCutIndexEnable {
		header |= 1 << 8
	}
	dst[0] = header
	dst[1] = p.CutIndex
}

// ColorCalcState is an indirect state block (not a command packet): stencil
// references from depth-stencil state and blend constants from color-blend
// state, merged by OR when both are bound.
type ColorCalcState struct {
	StencilReferenceValue         uint32
	BackfaceStencilReferenceValue uint32
	BlendConstants                [4]float32
}

func (ColorCalcState) Length() int { return ColorCalcStateLength }

func (p ColorCalcState) Pack(dst []uint32) {
	dst[0] = (p.StencilReferenceValue&0xff)<<24 | (p.BackfaceStencilReferenceValue&0xff)<<16
	dst[1] = 0
	dst[2] = f32bits(p.BlendConstants[0])
	dst[3] = f32bits(p.BlendConstants[1])
	dst[4] = f32bits(p.BlendConstants[2])
	dst[5] = f32bits(p.BlendConstants[3])
}

// InterfaceDescriptorData is the indirect descriptor consumed by
// MEDIA_INTERFACE_DESCRIPTOR_LOAD.
type InterfaceDescriptorData struct {
	KernelStartPointer  uint32
	BindingTablePointer uint32
	SamplerStatePointer uint32
}

const InterfaceDescriptorDataLength = 8

func (InterfaceDescriptorData) Length() int { return InterfaceDescriptorDataLength }

func (p InterfaceDescriptorData) Pack(dst []uint32) {
	dst[0] = p.KernelStartPointer
	dst[1] = 0
	dst[2] = 0
	dst[3] = p.SamplerStatePointer
	dst[4] = p.BindingTablePointer
	dst[5] = 0
	dst[6] = 0
	dst[7] = 0
}

// SurfaceStateLength is the byte footprint of one surface state entry;
// the 64-bit surface address sits at SurfaceStateAddressByteOffset.
const (
	SurfaceStateSize              = 64
	SurfaceStateAddressByteOffset = 8 * 4
)
