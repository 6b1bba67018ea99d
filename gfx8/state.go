package gfx8

// StateBaseAddress programs the four logical memory regions the hardware
// resolves state offsets against. Each address is patched via relocation when
// a backing buffer is present; a zero address with the modify-enable bit set
// resets the region.
type StateBaseAddress struct {
	GeneralStateAddress     uint64
	SurfaceStateAddress     uint64
	DynamicStateAddress     uint64
	InstructionStateAddress uint64
}

// Byte offsets of each 48-bit address field within the packet, for
// relocation records.
const (
	GeneralStateAddressOffset     = 4
	SurfaceStateAddressOffset     = 16
	DynamicStateAddressOffset     = 24
	InstructionStateAddressOffset = 40
)

func (StateBaseAddress) Length() int { return 16 }

func (p StateBaseAddress) Pack(dst []uint32) {
	dst[0] = gfxHeader(0, 1, 0x01, 16)
	packAddress48(dst[1:], p.GeneralStateAddress, true)
	dst[3] = 0 // stateless data port
	packAddress48(dst[4:], p.SurfaceStateAddress, true)
	packAddress48(dst[6:], p.DynamicStateAddress, true)
	dst[8] = 0
	dst[9] = 0 // indirect object base, unused
	packAddress48(dst[10:], p.InstructionStateAddress, true)
	dst[12] = 0xfffff<<12 | 1 // general state buffer size
	dst[13] = 0xfffff<<12 | 1 // dynamic state buffer size
	dst[14] = 0xfffff<<12 | 1 // indirect object buffer size
	dst[15] = 0xfffff<<12 | 1 // instruction buffer size
}

func packAddress48(dst []uint32, addr uint64, modify bool) {
	lo := uint32(addr)
	if modify {
		lo |= 1
	}
	dst[0] = lo
	dst[1] = uint32(addr >> 32)
}

type VertexAccess uint32

const (
	VertexAccessSequential VertexAccess = iota
	VertexAccessRandom
)

// Primitive3D issues one draw. Indirect draws leave the count fields zero and
// pull parameters from registers loaded beforehand.
type Primitive3D struct {
	IndirectParameterEnable bool
	VertexAccessType        VertexAccess
	VertexCountPerInstance  uint32
	StartVertexLocation     uint32
	InstanceCount           uint32
	StartInstanceLocation   uint32
	BaseVertexLocation      int32
}

func (Primitive3D) Length() int { return 7 }

func (p Primitive3D) Pack(dst []uint32) {
	header := gfxHeader(3, 3, 0, 7)
	if p.IndirectParameterEnable {
		header |= 1 << 10
	}
	dst[0] = header
	dst[1] = uint32(p.VertexAccessType) << 8
	dst[2] = p.VertexCountPerInstance
	dst[3] = p.StartVertexLocation
	dst[4] = p.InstanceCount
	dst[5] = p.StartInstanceLocation
	dst[6] = uint32(p.BaseVertexLocation)
}

// GPGPUWalker issues one compute dispatch.
type GPGPUWalker struct {
	IndirectParameterEnable bool
	SIMDSize                uint32
	ThreadWidthMax          uint32
	GroupCountX             uint32
	GroupCountY             uint32
	GroupCountZ             uint32
	RightExecutionMask      uint32
	BottomExecutionMask     uint32
}

func (GPGPUWalker) Length() int { return 15 }

func (p GPGPUWalker) Pack(dst []uint32) {
	header := gfxHeader(2, 1, 0x05, 15)
	if p.IndirectParameterEnable {
		header |= 1 << 10
	}
	dst[0] = header
	dst[1] = 0
	dst[2] = 0
	dst[3] = 0
	dst[4] = p.SIMDSize<<30 | p.ThreadWidthMax
	dst[5] = 0
	dst[6] = 0
	dst[7] = p.GroupCountX
	dst[8] = 0
	dst[9] = 0
	dst[10] = p.GroupCountY
	dst[11] = 0
	dst[12] = p.GroupCountZ
	dst[13] = p.RightExecutionMask
	dst[14] = p.BottomExecutionMask
}

type MediaStateFlush struct{}

func (MediaStateFlush) Length() int { return 2 }

func (MediaStateFlush) Pack(dst []uint32) {
	dst[0] = gfxHeader(2, 0, 0x04, 2)
	dst[1] = 0
}

// MediaInterfaceDescriptorLoad points the compute pipe at an interface
// descriptor previously written into dynamic state.
type MediaInterfaceDescriptorLoad struct {
	DescriptorLength uint32
	DescriptorOffset uint32
}

func (MediaInterfaceDescriptorLoad) Length() int { return 4 }

func (p MediaInterfaceDescriptorLoad) Pack(dst []uint32) {
	dst[0] = gfxHeader(2, 0, 0x02, 4)
	dst[1] = 0
	dst[2] = p.DescriptorLength
	dst[3] = p.DescriptorOffset
}

// BindingTablePointers and SamplerStatePointers carry per-stage sub-opcodes;
// the stage is supplied by the command buffer from its stage tables.
type BindingTablePointers struct {
	SubOpcode uint32
	Offset    uint32
}

func (BindingTablePointers) Length() int { return 2 }

func (p BindingTablePointers) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, p.SubOpcode, 2)
	dst[1] = p.Offset
}

type SamplerStatePointers struct {
	SubOpcode uint32
	Offset    uint32
}

func (SamplerStatePointers) Length() int { return 2 }

func (p SamplerStatePointers) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, p.SubOpcode, 2)
	dst[1] = p.Offset
}

// Per-stage sub-opcodes for the pointer packets above, indexed by the
// driver's stage numbering (vertex through fragment).
var (
	BindingTableSubOpcodes = [5]uint32{38, 39, 40, 41, 42}
	SamplerStateSubOpcodes = [5]uint32{43, 44, 45, 46, 47}
)

type ScissorStatePointers struct {
	Offset uint32
}

func (ScissorStatePointers) Length() int { return 2 }

func (p ScissorStatePointers) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x0f, 2)
	dst[1] = p.Offset
}

type ViewportStatePointersCC struct {
	Offset uint32
}

func (ViewportStatePointersCC) Length() int { return 2 }

func (p ViewportStatePointersCC) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x23, 2)
	dst[1] = p.Offset
}

type ViewportStatePointersSFClip struct {
	Offset uint32
}

func (ViewportStatePointersSFClip) Length() int { return 2 }

func (p ViewportStatePointersSFClip) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x21, 2)
	dst[1] = p.Offset
}

type CCStatePointers struct {
	Offset uint32
}

func (CCStatePointers) Length() int { return 2 }

func (p CCStatePointers) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x0e, 2)
	dst[1] = p.Offset | 1 // pointer valid
}

// IndexBufferState binds the index buffer. The 48-bit buffer address is
// patched via relocation.
type IndexBufferState struct {
	Format        IndexFormat
	BufferAddress uint64
	BufferSize    uint32
}

type IndexFormat uint32

const (
	IndexFormatWord IndexFormat = iota
	IndexFormatDword
)

// IndexBufferAddressOffset is the byte offset of the buffer address within
// the packet, for relocation records.
const IndexBufferAddressOffset = 8

func (IndexBufferState) Length() int { return 5 }

func (p IndexBufferState) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x0a, 5)
	dst[1] = uint32(p.Format) << 8
	dst[2] = uint32(p.BufferAddress)
	dst[3] = uint32(p.BufferAddress >> 32)
	dst[4] = p.BufferSize
}

// VertexBufferStateLength is the dword footprint of one vertex buffer entry
// inside a 3DSTATE_VERTEX_BUFFERS packet.
const VertexBufferStateLength = 4

// VertexBuffersHeader packs the header dword for a 3DSTATE_VERTEX_BUFFERS
// packet carrying bufferCount entries.
func VertexBuffersHeader(dst []uint32, bufferCount int) {
	dst[0] = gfxHeader(3, 0, 0x08, uint32(1+bufferCount*VertexBufferStateLength))
}

// VertexBufferState is one entry within 3DSTATE_VERTEX_BUFFERS. The buffer
// address in dwords 1-2 is patched via relocation.
type VertexBufferState struct {
	BufferIndex   uint32
	Pitch         uint32
	BufferAddress uint64
	BufferSize    uint32
}

// VertexBufferAddressOffset is the byte offset of the buffer address within
// one vertex buffer entry, for relocation records.
const VertexBufferAddressOffset = 4

func (p VertexBufferState) Pack(dst []uint32) {
	dst[0] = p.BufferIndex<<26 | 1<<14 /* address modify enable */ | p.Pitch&0xfff
	dst[1] = uint32(p.BufferAddress)
	dst[2] = uint32(p.BufferAddress >> 32)
	dst[3] = p.BufferSize
}
