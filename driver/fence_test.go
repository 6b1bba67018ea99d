package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestFenceSignalsAfterSubmit(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})
	cb := beginCommandBuffer(t, device)
	endCommandBuffer(t, cb)

	fence, res, err := NewFence(device)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	defer fence.Destroy()

	// Unsubmitted fences are never signaled.
	res, err = fence.Status()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKNotReady, res)

	res, err = device.Queue().Submit([]*CommandBuffer{cb}, fence)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	// One submission for the command buffer, one for the fence batch.
	require.Len(t, drv.Submissions(), 2)

	res, err = fence.Status()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	res, err = device.WaitForFences([]*Fence{fence}, true, -1)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	_, err = fence.Reset()
	require.NoError(t, err)
	res, err = fence.Status()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKNotReady, res)
}

func TestWaitForFencesTimeout(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})
	cb := beginCommandBuffer(t, device)
	endCommandBuffer(t, cb)

	fence, _, err := NewFence(device)
	require.NoError(t, err)
	defer fence.Destroy()

	_, err = device.Queue().Submit([]*CommandBuffer{cb}, fence)
	require.NoError(t, err)

	// Simulate a busy device that outlives the wait deadline.
	drv.BusyNs = 1_000_000
	res, err := device.WaitForFences([]*Fence{fence}, true, 100)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKTimeout, res)

	res, err = fence.Status()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKNotReady, res)

	drv.BusyNs = 0
	res, err = device.WaitForFences([]*Fence{fence}, true, 100)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestWaitAnyFenceHonorsDeadline(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})

	fences := make([]*Fence, 2)
	for i := range fences {
		fence, _, err := NewFence(device)
		require.NoError(t, err)
		defer fence.Destroy()

		_, err = device.Queue().Submit(nil, fence)
		require.NoError(t, err)
		fences[i] = fence
	}

	// With the device busy past the deadline, the any-fence wait must block
	// for at least the requested timeout before giving up.
	drv.BusyNs = time.Second.Nanoseconds()
	timeout := 10 * time.Millisecond

	startTime := time.Now()
	res, err := device.WaitForFences(fences, false, timeout.Nanoseconds())
	require.NoError(t, err)
	require.Equal(t, core1_0.VKTimeout, res)
	require.GreaterOrEqual(t, time.Since(startTime), timeout)

	drv.BusyNs = 0
	res, err = device.WaitForFences(fences, false, timeout.Nanoseconds())
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestWaitForUnsubmittedFenceFails(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	fence, _, err := NewFence(device)
	require.NoError(t, err)
	defer fence.Destroy()

	res, err := device.WaitForFences([]*Fence{fence}, true, 100)
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorUnknown, res)
}
