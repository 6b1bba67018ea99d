package driver

import (
	cerrors "github.com/cockroachdb/errors"

	"github.com/gqmelo/mesa/gem"
)

// noIndex marks a BO that is not part of any in-flight submission assembly.
const noIndex = -1

// BO wraps one kernel buffer object. The handle is the buffer's stable
// identity; offset is the GPU address the kernel most recently placed it at
// and may change on any submission. index is only meaningful while one
// submission assembly pass is running.
type BO struct {
	handle gem.BufferHandle
	size   int
	mapped []byte
	offset uint64
	index  int
}

func (bo *BO) Handle() gem.BufferHandle { return bo.handle }
func (bo *BO) Size() int                { return bo.size }
func (bo *BO) Offset() uint64           { return bo.offset }

// Mapped returns the CPU mapping, or nil while unmapped.
func (bo *BO) Mapped() []byte { return bo.mapped }

// initNew allocates a fresh kernel buffer for bo. The buffer starts unmapped.
func (bo *BO) initNew(device *Device, size int) error {
	handle, err := device.driver.CreateBuffer(size)
	if err != nil {
		return cerrors.Wrapf(err, "allocating a %d-byte buffer object", size)
	}

	bo.handle = handle
	bo.size = size
	bo.mapped = nil
	bo.offset = 0
	bo.index = noIndex
	return nil
}

func (bo *BO) mmap(device *Device) error {
	mapped, err := device.driver.Mmap(bo.handle, bo.size)
	if err != nil {
		return cerrors.Wrapf(err, "mapping buffer object %d", bo.handle)
	}
	bo.mapped = mapped
	return nil
}

func (bo *BO) close(device *Device) {
	if bo.mapped != nil {
		_ = device.driver.Munmap(bo.handle)
		bo.mapped = nil
	}
	if bo.handle != 0 {
		_ = device.driver.CloseBuffer(bo.handle)
		bo.handle = 0
	}
}
