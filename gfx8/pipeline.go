package gfx8

// URBAllocation partitions the unified return buffer for one geometry stage.
// StageSlot is the driver's stage numbering, vertex through geometry.
type URBAllocation struct {
	StageSlot  int
	StartSlice uint32
	EntrySize  uint32
	Entries    uint32
}

func (URBAllocation) Length() int { return 2 }

func (p URBAllocation) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, uint32(48+p.StageSlot), 2)
	dst[1] = p.StartSlice<<25 | p.EntrySize<<16 | p.Entries&0xffff
}

// StateVFTopology selects the primitive topology for subsequent draws.
type StateVFTopology struct {
	Topology uint32
}

func (StateVFTopology) Length() int { return 2 }

func (p StateVFTopology) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 0, 0x4b, 2)
	dst[1] = p.Topology & 0x3f
}

// MediaVFEState configures the compute pipe's thread dispatcher. The scratch
// space address in dword 1 is patched via relocation when scratch is in use.
type MediaVFEState struct {
	ScratchAddress      uint64
	PerThreadScratch    uint32
	MaximumThreads      uint32
	URBEntries          uint32
	URBEntryAllocation  uint32
	CURBEAllocationSize uint32
}

// VFEStateScratchAddressOffset is the byte offset of the scratch address
// within the packet, for relocation records.
const VFEStateScratchAddressOffset = 4

func (MediaVFEState) Length() int { return 9 }

func (p MediaVFEState) Pack(dst []uint32) {
	dst[0] = gfxHeader(2, 0, 0x00, 9)
	dst[1] = uint32(p.ScratchAddress) | p.PerThreadScratch&0xf
	dst[2] = uint32(p.ScratchAddress >> 32)
	dst[3] = (p.MaximumThreads-1)<<16 | p.URBEntries<<8
	dst[4] = 0
	dst[5] = p.URBEntryAllocation<<16 | p.CURBEAllocationSize&0xffff
	dst[6] = 0
	dst[7] = 0
	dst[8] = 0
}

// BufferSurfaceState packs a SURFTYPE_BUFFER surface state entry, the
// dynamic-buffer analogue of a pre-baked image surface. The 64-bit base
// address lives at SurfaceStateAddressByteOffset and is patched via
// relocation.
type BufferSurfaceState struct {
	Format      uint32
	BaseAddress uint64
	Stride      uint32
	RangeBytes  uint32
}

func (BufferSurfaceState) Length() int { return SurfaceStateSize / 4 }

func (p BufferSurfaceState) Pack(dst []uint32) {
	stride := p.Stride
	if stride == 0 {
		stride = 4
	}
	elements := p.RangeBytes / stride

	const surftypeBuffer = 4
	dst[0] = surftypeBuffer<<29 | p.Format<<18
	dst[1] = 0
	dst[2] = (elements>>7)&0x3fff<<16 | elements&0x7f
	dst[3] = (elements>>21)&0x3f<<21 | (stride-1)&0x1ff
	dst[4] = 0
	dst[5] = 0
	dst[6] = 0
	dst[7] = 0
	dst[8] = uint32(p.BaseAddress)
	dst[9] = uint32(p.BaseAddress >> 32)
	for i := 10; i < 16; i++ {
		dst[i] = 0
	}
}
