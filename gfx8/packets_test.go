package gfx8

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderEncoding(t *testing.T) {
	dwords := PackDwords(PipeControl{})
	require.Len(t, dwords, 6)
	// GFXPIPE type 3, opcode 2, sub-opcode 0, length bias 6-2.
	require.Equal(t, uint32(0x3<<29|3<<27|2<<24|4), dwords[0])

	dwords = PackDwords(MIBatchBufferEnd{})
	require.Equal(t, uint32(0x0a<<23), dwords[0])

	require.Zero(t, PackDwords(MINoop{})[0])
}

func TestBatchBufferStartAddress(t *testing.T) {
	p := MIBatchBufferStart{
		AddressSpace: AddressSpacePPGTT,
		StartAddress: 0x1_2345_6789,
	}
	dwords := PackDwords(p)

	require.Len(t, dwords, MIBatchBufferStartLength)
	require.NotZero(t, dwords[0]&(1<<8))
	require.Equal(t, uint32(0x2345_6789), dwords[1])
	require.Equal(t, uint32(0x1), dwords[2])

	// The relocation constant points at the low address dword.
	require.Equal(t, 1*4, BatchBufferStartAddressOffset)
}

func TestPrimitive3DIndirectBit(t *testing.T) {
	direct := PackDwords(Primitive3D{
		VertexAccessType:       VertexAccessRandom,
		VertexCountPerInstance: 36,
		InstanceCount:          2,
		BaseVertexLocation:     -4,
	})
	require.Zero(t, direct[0]&(1<<10))
	require.Equal(t, uint32(1)<<8, direct[1])
	require.Equal(t, uint32(36), direct[2])
	require.Equal(t, uint32(2), direct[4])
	require.Equal(t, int32(-4), int32(direct[6]))

	indirect := PackDwords(Primitive3D{IndirectParameterEnable: true})
	require.NotZero(t, indirect[0]&(1<<10))
}

func TestStateVFMerge(t *testing.T) {
	pipelineHalf := PackDwords(StateVF{IndexedDrawCutIndexEnable: true})
	dynamicHalf := PackDwords(StateVF{CutIndex: 0xffff})

	merged := make([]uint32, StateVFLength)
	for i := range merged {
		merged[i] = pipelineHalf[i] | dynamicHalf[i]
	}

	require.NotZero(t, merged[0]&(1<<8))
	require.Equal(t, uint32(0xffff), merged[1])

	// Both halves pack the same header, so the OR does not corrupt it.
	require.Equal(t, dynamicHalf[0], pipelineHalf[0]&^(1<<8))
}

func TestColorCalcStateMerge(t *testing.T) {
	ds := PackDwords(ColorCalcState{
		StencilReferenceValue:         0x80,
		BackfaceStencilReferenceValue: 0x40,
	})
	cb := PackDwords(ColorCalcState{
		BlendConstants: [4]float32{0.25, 0.5, 0.75, 1},
	})

	merged := make([]uint32, ColorCalcStateLength)
	for i := range merged {
		merged[i] = ds[i] | cb[i]
	}

	require.Equal(t, uint32(0x80<<24|0x40<<16), merged[0])
	require.Equal(t, f32bits(0.25), merged[2])
	require.Equal(t, f32bits(1), merged[5])
}

func TestBufferSurfaceStateAddressPlacement(t *testing.T) {
	var raw [SurfaceStateSize]byte
	PackState(raw[:], BufferSurfaceState{
		Format:      0x2a,
		BaseAddress: 0xdead_beef_1234,
		RangeBytes:  4096,
	})

	addr := binary.LittleEndian.Uint64(raw[SurfaceStateAddressByteOffset:])
	require.Equal(t, uint64(0xdead_beef_1234), addr)
}

func TestSurfaceStateConstants(t *testing.T) {
	require.Equal(t, SurfaceStateSize/4, BufferSurfaceState{}.Length())
	require.LessOrEqual(t, SurfaceStateAddressByteOffset+8, SurfaceStateSize)
}

func TestVertexBufferStatePitchMask(t *testing.T) {
	dwords := make([]uint32, VertexBufferStateLength)
	VertexBufferState{
		BufferIndex:   3,
		Pitch:         48,
		BufferAddress: 0xabcd_0000,
		BufferSize:    1024,
	}.Pack(dwords)

	require.Equal(t, uint32(3), dwords[0]>>26)
	require.Equal(t, uint32(48), dwords[0]&0xfff)
	require.NotZero(t, dwords[0]&(1<<14))
	require.Equal(t, uint32(0xabcd_0000), dwords[1])
	require.Equal(t, uint32(1024), dwords[3])
}

func TestStateBaseAddressRelocOffsets(t *testing.T) {
	// The relocation constants must each point at a modify-enabled 48-bit
	// address slot inside the packet.
	for _, offset := range []int{
		GeneralStateAddressOffset,
		SurfaceStateAddressOffset,
		DynamicStateAddressOffset,
		InstructionStateAddressOffset,
	} {
		require.Zero(t, offset%4)
		require.Less(t, offset/4+1, StateBaseAddress{}.Length())
	}
}
