package driver

import (
	"encoding/binary"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gfx8"
)

// Buffer is a standalone, CPU-mapped allocation that recording code can bind
// as vertex, index, indirect-parameter or descriptor storage.
type Buffer struct {
	device *Device

	bo     BO
	offset uint64
	size   int
}

func (d *Device) AllocBuffer(size int) (*Buffer, common.VkResult, error) {
	buffer := &Buffer{
		device: d,
		size:   size,
	}

	if err := buffer.bo.initNew(d, size); err != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}
	if err := buffer.bo.mmap(d); err != nil {
		buffer.bo.close(d)
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}

	return buffer, core1_0.VKSuccess, nil
}

func (b *Buffer) Destroy() {
	b.bo.close(b.device)
}

func (b *Buffer) Size() int { return b.size }

// Mapped returns the buffer's CPU mapping for the caller to fill with vertex
// or parameter data.
func (b *Buffer) Mapped() []byte { return b.bo.mapped }

// SurfaceView is a shader-visible window into a buffer's BO: the target of
// one surface descriptor. The canonical surface state image is baked at view
// creation from the device pool; binding tables copy it and patch the
// address through a relocation.
type SurfaceView struct {
	bo     *BO
	offset uint64
	rng    uint32
	format uint32

	surfaceState State
}

// NewBufferView bakes a surface view over a byte range of buffer.
func (d *Device) NewBufferView(buffer *Buffer, format uint32, offset uint64, rng uint32) (*SurfaceView, common.VkResult, error) {
	view := &SurfaceView{
		bo:     &buffer.bo,
		offset: buffer.offset + offset,
		rng:    rng,
		format: format,
	}

	state, err := d.surfaceStatePool.Alloc(gfx8.SurfaceStateSize, gfx8.SurfaceStateSize)
	if err != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}
	view.surfaceState = state

	gfx8.PackState(state.Map, gfx8.BufferSurfaceState{
		Format:      format,
		BaseAddress: view.offset,
		RangeBytes:  rng,
	})

	return view, core1_0.VKSuccess, nil
}

func (v *SurfaceView) Destroy(d *Device) {
	d.surfaceStatePool.Free(v.surfaceState)
}

// samplerStateSize is the byte footprint of one sampler state entry.
const samplerStateSize = 16

// Sampler holds a pre-packed sampler state image copied verbatim into
// sampler tables at flush time.
type Sampler struct {
	state [samplerStateSize]byte
}

type SamplerInfo struct {
	MagLinear     bool
	MinLinear     bool
	MaxAnisotropy uint32
	MaxLOD        float32
}

func NewSampler(info SamplerInfo) *Sampler {
	sampler := &Sampler{}

	var dw0 uint32
	if info.MagLinear {
		dw0 |= 1 << 17
	}
	if info.MinLinear {
		dw0 |= 1 << 14
	}
	dw1 := uint32(info.MaxLOD*256) & 0xfff
	dw2 := info.MaxAnisotropy << 19

	binary.LittleEndian.PutUint32(sampler.state[0:], dw0)
	binary.LittleEndian.PutUint32(sampler.state[4:], dw1)
	binary.LittleEndian.PutUint32(sampler.state[8:], dw2)
	binary.LittleEndian.PutUint32(sampler.state[12:], 0)
	return sampler
}
