package driver

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gem"
	"github.com/gqmelo/mesa/gfx8"
)

func beginCommandBuffer(t *testing.T, device *Device) *CommandBuffer {
	t.Helper()

	cb, res, err := NewCommandBuffer(device)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	t.Cleanup(cb.Destroy)

	res, err = cb.Begin()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	return cb
}

func endCommandBuffer(t *testing.T, cb *CommandBuffer) {
	t.Helper()

	res, err := cb.End()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestCommandBufferLifecycle(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})
	cb := beginCommandBuffer(t, device)

	endCommandBuffer(t, cb)
	require.Equal(t, statusExecutable, cb.status)

	// Recording into an ended command buffer is misuse.
	require.Panics(t, func() {
		cb.Draw(3, 1, 0, 0)
	})

	res, err := cb.Reset()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	require.Equal(t, statusInitial, cb.status)

	// Reset twice is harmless and the buffer records again afterward.
	_, err = cb.Reset()
	require.NoError(t, err)

	_, err = cb.Begin()
	require.NoError(t, err)
	endCommandBuffer(t, cb)
}

func TestEndPadsToEvenDwordCount(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})
	cb := beginCommandBuffer(t, device)

	endCommandBuffer(t, cb)

	require.Zero(t, cb.lastBatchBO.length%8)

	// The final dwords are the end sentinel, then padding if any.
	var sentinel [1]uint32
	gfx8.MIBatchBufferEnd{}.Pack(sentinel[:])

	data := cb.lastBatchBO.bo.mapped
	last := cb.lastBatchBO.length
	if binary.LittleEndian.Uint32(data[last-8:]) != sentinel[0] {
		require.Equal(t, sentinel[0], binary.LittleEndian.Uint32(data[last-4:]))
	}
}

func TestResetReleasesChainedBuffers(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{BatchBoSize: 128})

	cb, _, err := NewCommandBuffer(device)
	require.NoError(t, err)
	defer cb.Destroy()

	first := cb.lastBatchBO
	for i := 0; i < 20; i++ {
		cb.batch.Emit(gfx8.PipeControl{})
	}
	require.NoError(t, cb.batch.Err())
	require.NotSame(t, first, cb.lastBatchBO)

	_, err = cb.Reset()
	require.NoError(t, err)

	require.Nil(t, cb.lastBatchBO.prev)
	require.Zero(t, cb.batch.Used())
	require.Zero(t, cb.batchRelocs.Len())
	require.Equal(t, 1, cb.surfaceNext)
}

func TestSubmissionOrdersPrimaryBatchLast(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})
	cb := beginCommandBuffer(t, device)

	buffer, _, err := device.AllocBuffer(4096)
	require.NoError(t, err)
	defer buffer.Destroy()

	cb.BindIndexBuffer(buffer, 0, core1_0.IndexTypeUInt32)
	endCommandBuffer(t, cb)

	res, err := device.Queue().Submit([]*CommandBuffer{cb}, nil)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	submissions := drv.Submissions()
	require.Len(t, submissions, 1)
	execbuf := submissions[0]

	// The batch chain root executes, so it must be the final object.
	root := execbuf.Objects[len(execbuf.Objects)-1]
	require.Equal(t, cb.lastBatchBO.bo.handle, root.Handle)
	require.Equal(t, cb.lastBatchBO.length, execbuf.BatchLen)
	require.Zero(t, execbuf.BatchStartOffset)

	// The surface chain went in first; the index buffer is somewhere in
	// between as a relocation target.
	require.Equal(t, cb.surfaceBatchBO.bo.handle, execbuf.Objects[0].Handle)
	found := false
	for _, obj := range execbuf.Objects {
		if obj.Handle == buffer.bo.handle {
			found = true
		}
	}
	require.True(t, found, "index buffer missing from the object list")

	require.NotZero(t, execbuf.Flags&gem.ExecHandleLUT)
	require.NotZero(t, execbuf.Flags&gem.ExecRender)
}

func TestSubmissionDeduplicatesBuffers(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})
	cb := beginCommandBuffer(t, device)

	buffer, _, err := device.AllocBuffer(4096)
	require.NoError(t, err)
	defer buffer.Destroy()

	// The same buffer referenced three times yields one exec object.
	cb.BindIndexBuffer(buffer, 0, core1_0.IndexTypeUInt32)
	cb.BindIndexBuffer(buffer, 64, core1_0.IndexTypeUInt16)
	cb.BindIndexBuffer(buffer, 128, core1_0.IndexTypeUInt32)
	endCommandBuffer(t, cb)

	_, err = device.Queue().Submit([]*CommandBuffer{cb}, nil)
	require.NoError(t, err)

	execbuf := drv.Submissions()[0]
	count := 0
	for _, obj := range execbuf.Objects {
		if obj.Handle == buffer.bo.handle {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestSubmissionRelocFastPath(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})

	buffer, _, err := device.AllocBuffer(4096)
	require.NoError(t, err)
	defer buffer.Destroy()

	record := func() *CommandBuffer {
		cb := beginCommandBuffer(t, device)
		cb.BindIndexBuffer(buffer, 0, core1_0.IndexTypeUInt32)
		endCommandBuffer(t, cb)
		return cb
	}

	// Nothing has moved: the no-reloc fast path applies.
	cbA := record()
	cbB := record()

	_, err = device.Queue().Submit([]*CommandBuffer{cbA}, nil)
	require.NoError(t, err)
	require.NotZero(t, drv.Submissions()[0].Flags&gem.ExecNoReloc)

	// Move every buffer on the next submission. cbB's presumed addresses
	// go stale, so its submission must request relocation processing.
	drv.MoveOnSubmit = true
	_, err = device.Queue().Submit([]*CommandBuffer{cbA}, nil)
	require.NoError(t, err)

	drv.MoveOnSubmit = false
	_, err = device.Queue().Submit([]*CommandBuffer{cbB}, nil)
	require.NoError(t, err)

	submissions := drv.Submissions()
	require.Len(t, submissions, 3)
	require.Zero(t, submissions[2].Flags&gem.ExecNoReloc)
}

func TestSubmitFailureReportsDeviceLost(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})
	cb := beginCommandBuffer(t, device)
	endCommandBuffer(t, cb)

	drv.FailNextExec = gem.ErrBadSubmission
	res, err := device.Queue().Submit([]*CommandBuffer{cb}, nil)
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorDeviceLost, res)
}
