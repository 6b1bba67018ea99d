package gfx8

import (
	"encoding/binary"
	"math"
)

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}

// PackDwords packs a packet into a fresh dword slice, for state snapshots
// baked outside a live batch.
func PackDwords(p Packet) []uint32 {
	dst := make([]uint32, p.Length())
	p.Pack(dst)
	return dst
}

// PackState packs a packet's dword image into a little-endian byte window,
// for indirect state written outside a live batch. dst must hold at least
// Length()*4 bytes.
func PackState(dst []byte, p Packet) {
	for i, dw := range PackDwords(p) {
		binary.LittleEndian.PutUint32(dst[i*4:], dw)
	}
}
