package gfx8

// Command packets are fixed-layout little-endian dword images. Every packet
// knows its length in dwords and packs itself into a caller-provided window.
// The batch writer owns cursor management and relocation bookkeeping; packets
// only produce bytes.
type Packet interface {
	// Length returns the packet size in dwords.
	Length() int
	// Pack writes the packet image into dst, which must hold at least
	// Length() dwords.
	Pack(dst []uint32)
}

// MI command opcodes live in bits 28:23 of the header dword.
const (
	miNoop             uint32 = 0x00 << 23
	miBatchBufferEnd   uint32 = 0x0a << 23
	miLoadRegisterImm  uint32 = 0x22 << 23
	miLoadRegisterMem  uint32 = 0x29 << 23
	miBatchBufferStart uint32 = 0x31 << 23
)

// gfxHeader builds a GFXPIPE command header: pipeline type in 28:27, opcode
// in 26:24, sub-opcode in 23:16, dword length bias in 7:0.
func gfxHeader(subType, opcode, subOpcode, length uint32) uint32 {
	return 0x3<<29 | subType<<27 | opcode<<24 | subOpcode<<16 | (length - 2)
}

type MINoop struct{}

func (MINoop) Length() int       { return 1 }
func (MINoop) Pack(dst []uint32) { dst[0] = miNoop }

type MIBatchBufferEnd struct{}

func (MIBatchBufferEnd) Length() int       { return 1 }
func (MIBatchBufferEnd) Pack(dst []uint32) { dst[0] = miBatchBufferEnd }

// MIBatchBufferStart chains execution into another buffer. The 48-bit start
// address occupies dwords 1-2 and is patched through a relocation entry; the
// value packed here is only the presumed address.
type MIBatchBufferStart struct {
	SecondLevel  bool
	AddressSpace AddressSpace
	StartAddress uint64
}

type AddressSpace uint32

const (
	AddressSpaceGGTT AddressSpace = iota
	AddressSpacePPGTT
)

// MIBatchBufferStartLength is the full packet size in dwords. Batch buffers
// reserve this many dwords of tail space for the chaining jump.
const MIBatchBufferStartLength = 3

// BatchBufferStartAddressOffset is the byte offset of the start address
// within the packet, for relocation records.
const BatchBufferStartAddressOffset = 4

func (MIBatchBufferStart) Length() int { return MIBatchBufferStartLength }

func (p MIBatchBufferStart) Pack(dst []uint32) {
	header := miBatchBufferStart | uint32(MIBatchBufferStartLength-2)
	if p.SecondLevel {
		header |= 1 << 22
	}
	if p.AddressSpace == AddressSpacePPGTT {
		header |= 1 << 8
	}
	dst[0] = header
	dst[1] = uint32(p.StartAddress)
	dst[2] = uint32(p.StartAddress >> 32)
}

// MILoadRegisterImm writes an immediate value to an MMIO register.
type MILoadRegisterImm struct {
	Register uint32
	Value    uint32
}

func (MILoadRegisterImm) Length() int { return 3 }

func (p MILoadRegisterImm) Pack(dst []uint32) {
	dst[0] = miLoadRegisterImm | 1
	dst[1] = p.Register
	dst[2] = p.Value
}

// MILoadRegisterMem loads an MMIO register from GPU memory. The 48-bit
// memory address in dwords 2-3 is patched through a relocation entry.
type MILoadRegisterMem struct {
	Register      uint32
	MemoryAddress uint64
}

// LoadRegisterMemAddressOffset is the byte offset of the memory address
// within the packet, for relocation records.
const LoadRegisterMemAddressOffset = 8

func (MILoadRegisterMem) Length() int { return 4 }

func (p MILoadRegisterMem) Pack(dst []uint32) {
	dst[0] = miLoadRegisterMem | 2
	dst[1] = p.Register
	dst[2] = uint32(p.MemoryAddress)
	dst[3] = uint32(p.MemoryAddress >> 32)
}

type PipelineSelection uint32

const (
	Pipeline3D PipelineSelection = iota
	PipelineMedia
	PipelineGPGPU
)

type PipelineSelect struct {
	Selection PipelineSelection
}

func (PipelineSelect) Length() int { return 1 }

func (p PipelineSelect) Pack(dst []uint32) {
	dst[0] = 0x3<<29 | 0x1<<27 | 0x1<<24 | 0x04<<16 | uint32(p.Selection)
}

// PipeControl is used here only for its cache-maintenance bits when surface
// state buffers are replaced mid-recording.
type PipeControl struct {
	TextureCacheInvalidate bool
	CommandStreamerStall   bool
}

func (PipeControl) Length() int { return 6 }

func (p PipeControl) Pack(dst []uint32) {
	dst[0] = gfxHeader(3, 2, 0, 6)
	var bits uint32
	if p.TextureCacheInvalidate {
		bits |= 1 << 10
	}
	if p.CommandStreamerStall {
		bits |= 1 << 20
	}
	dst[1] = bits
	dst[2] = 0
	dst[3] = 0
	dst[4] = 0
	dst[5] = 0
}
