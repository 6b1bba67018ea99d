package driver

import (
	"encoding/binary"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gem"
	"github.com/gqmelo/mesa/gfx8"
)

const fenceBatchSize = 4096

// Fence is a tiny pre-built batch whose only job is to be waitable. The
// queue submits it after a batch of command buffers; once the fence's BO
// goes idle, everything submitted before it has executed.
type Fence struct {
	device    *Device
	bo        BO
	execbuf   gem.ExecBuffer
	submitted bool
}

func NewFence(device *Device) (*Fence, common.VkResult, error) {
	f := &Fence{device: device}

	if err := f.bo.initNew(device, fenceBatchSize); err != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}
	if err := f.bo.mmap(device); err != nil {
		f.bo.close(device)
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}

	var dwords [2]uint32
	gfx8.MIBatchBufferEnd{}.Pack(dwords[:])
	gfx8.MINoop{}.Pack(dwords[1:])
	binary.LittleEndian.PutUint32(f.bo.mapped, dwords[0])
	binary.LittleEndian.PutUint32(f.bo.mapped[4:], dwords[1])

	f.execbuf = gem.ExecBuffer{
		Objects: []gem.ExecObject{{
			Handle: f.bo.handle,
		}},
		BatchStartOffset: 0,
		BatchLen:         8,
		Flags:            gem.ExecHandleLUT | gem.ExecNoReloc | gem.ExecRender,
		ContextID:        device.contextID,
	}

	return f, core1_0.VKSuccess, nil
}

func (f *Fence) Destroy() {
	f.bo.close(f.device)
}

// Reset returns the fence to the unsignaled state.
func (f *Fence) Reset() (common.VkResult, error) {
	f.submitted = false
	return core1_0.VKSuccess, nil
}

// Status polls the fence without blocking.
func (f *Fence) Status() (common.VkResult, error) {
	if !f.submitted {
		return core1_0.VKNotReady, nil
	}

	err := f.device.driver.Wait(f.bo.handle, 0)
	if errors.Is(err, gem.ErrTimeout) {
		return core1_0.VKNotReady, nil
	}
	if err != nil {
		return core1_0.VKErrorDeviceLost, cerrors.Wrap(err, "polling fence")
	}
	return core1_0.VKSuccess, nil
}

// WaitForFences blocks until the given fences signal or timeoutNs elapses.
// A negative timeout waits forever. With waitAll false it returns as soon as
// any one fence signals.
func (d *Device) WaitForFences(fences []*Fence, waitAll bool, timeoutNs int64) (common.VkResult, error) {
	if !waitAll && len(fences) > 1 {
		// Emulated by polling each fence in turn with a zero timeout until
		// the deadline passes; the kernel interface only waits on one
		// buffer at a time.
		return d.waitAnyFence(fences, timeoutNs)
	}

	for _, f := range fences {
		if !f.submitted {
			return core1_0.VKErrorUnknown, errors.New("waiting on a fence that was never submitted")
		}

		err := d.driver.Wait(f.bo.handle, timeoutNs)
		if errors.Is(err, gem.ErrTimeout) {
			return core1_0.VKTimeout, nil
		}
		if err != nil {
			return core1_0.VKErrorDeviceLost, cerrors.Wrap(err, "waiting for fence")
		}
	}
	return core1_0.VKSuccess, nil
}

// anyFencePollInterval paces the polling loop waitAnyFence runs on.
const anyFencePollInterval = 100 * time.Microsecond

func (d *Device) waitAnyFence(fences []*Fence, timeoutNs int64) (common.VkResult, error) {
	var deadline time.Time
	if timeoutNs >= 0 {
		deadline = time.Now().Add(time.Duration(timeoutNs))
	}

	for {
		for _, f := range fences {
			res, err := f.Status()
			if err != nil {
				return res, err
			}
			if res == core1_0.VKSuccess {
				return core1_0.VKSuccess, nil
			}
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return core1_0.VKTimeout, nil
		}
		time.Sleep(anyFencePollInterval)
	}
}
