package driver

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Queue submits finished command buffers to the device's execution context.
// Submissions on one queue execute in order; the fence, when given, is
// submitted after every command buffer so it signals once all of them drain.
type Queue struct {
	device *Device
}

// Submit hands each executable command buffer to the kernel in order.
// Assembly happens here rather than at End so that stale presumed addresses
// caused by intervening submissions are detected, and the kernel's final
// buffer placements are copied back into the referenced BOs afterward.
func (q *Queue) Submit(cmdBuffers []*CommandBuffer, fence *Fence) (common.VkResult, error) {
	for _, cb := range cmdBuffers {
		if cb.status != statusExecutable {
			panic("submitting a command buffer that has not ended")
		}

		if err := cb.assembleExec(); err != nil {
			return core1_0.VKErrorOutOfHostMemory, err
		}

		if err := q.device.driver.Execbuffer(&cb.execbuf); err != nil {
			return core1_0.VKErrorDeviceLost, cerrors.Wrap(err, "submitting command buffer")
		}

		for i := 0; i < cb.boCount; i++ {
			cb.execBOs[i].offset = cb.execObjects[i].Offset
		}
	}

	if fence != nil {
		if err := q.device.driver.Execbuffer(&fence.execbuf); err != nil {
			return core1_0.VKErrorDeviceLost, cerrors.Wrap(err, "submitting fence")
		}
		fence.bo.offset = fence.execbuf.Objects[0].Offset
		fence.submitted = true
	}

	return core1_0.VKSuccess, nil
}

// WaitIdle drains the queue. With a single execution context this is the
// device-level wait.
func (q *Queue) WaitIdle() (common.VkResult, error) {
	return q.device.WaitIdle()
}
