package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gqmelo/mesa/memutils"
)

func TestBlockPoolGrowKeepsOffsetsAndContent(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	var pool BlockPool
	require.NoError(t, pool.Init(device, 256))
	defer pool.Finish()

	offset, mapped, err := pool.Alloc(64, 64)
	require.NoError(t, err)
	require.Zero(t, offset)
	copy(mapped, []byte("persists"))

	// Force growth well past the initial size.
	bigOffset, _, err := pool.Alloc(4096, 64)
	require.NoError(t, err)
	require.Equal(t, 64, bigOffset)
	require.GreaterOrEqual(t, pool.Size(), 4096+64)

	// Bytes written before growth survive, readable through a fresh map.
	require.Equal(t, []byte("persists"), pool.Map(offset, 8))
}

func TestBlockPoolKeepsBOIdentityAcrossGrowth(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	var pool BlockPool
	require.NoError(t, pool.Init(device, 64))
	defer pool.Finish()

	bo := pool.BO()
	_, _, err := pool.Alloc(1024, 1)
	require.NoError(t, err)

	require.Same(t, bo, pool.BO())
	require.GreaterOrEqual(t, bo.size, 1024)
}

func TestBlockPoolGrow(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	var pool BlockPool
	require.NoError(t, pool.Init(device, 64))
	defer pool.Finish()

	require.NoError(t, pool.Grow(1000))
	require.GreaterOrEqual(t, pool.Size(), 1000)

	size := pool.Size()
	require.NoError(t, pool.Grow(10))
	require.Equal(t, size, pool.Size())
}

func TestStatePoolReusesFreedChunks(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	var block BlockPool
	require.NoError(t, block.Init(device, 4096))
	defer block.Finish()

	var pool StatePool
	pool.Init(&block)

	a, err := pool.Alloc(48, 32)
	require.NoError(t, err)
	require.Equal(t, 64, a.AllocSize)

	b, err := pool.Alloc(48, 32)
	require.NoError(t, err)
	require.NotEqual(t, a.Offset, b.Offset)

	pool.Free(a)

	// Same size class comes back off the free list.
	c, err := pool.Alloc(40, 64)
	require.NoError(t, err)
	require.Equal(t, a.Offset, c.Offset)
}

func TestStatePoolFreeZeroStateIsNoop(t *testing.T) {
	var pool StatePool
	require.NotPanics(t, func() {
		pool.Free(State{})
	})
}

func TestStatePoolStatistics(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	var block BlockPool
	require.NoError(t, block.Init(device, 4096))
	defer block.Finish()

	var pool StatePool
	pool.Init(&block)

	a, err := pool.Alloc(64, 64)
	require.NoError(t, err)
	b, err := pool.Alloc(128, 64)
	require.NoError(t, err)
	pool.Free(a)

	var stats memutils.DetailedStatistics
	stats.Clear()
	pool.AddDetailedStatistics(&stats)

	require.Equal(t, 1, stats.BlockCount)
	require.Equal(t, 4096, stats.BlockBytes)
	require.Equal(t, 1, stats.AllocationCount)
	require.Equal(t, 128, stats.AllocationBytes)
	require.Equal(t, 1, stats.UnusedRangeCount)
	require.Equal(t, 64, stats.UnusedRangeSizeMin)
	require.Equal(t, 64, stats.UnusedRangeSizeMax)

	pool.Free(b)
}

func TestStateStreamAllocAndReset(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	var block BlockPool
	require.NoError(t, block.Init(device, 4096))
	defer block.Finish()

	var stream StateStream
	stream.Init(&block)

	a, err := stream.Alloc(16, 32)
	require.NoError(t, err)
	require.Zero(t, a.Offset%32)

	b, err := stream.Alloc(16, 32)
	require.NoError(t, err)
	require.Greater(t, b.Offset, a.Offset)
	require.Equal(t, 2, stream.Count())

	stream.Reset()
	require.Zero(t, stream.Count())
}

func TestBoPoolRecyclesBuffers(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	bo, err := device.batchBoPool.Alloc()
	require.NoError(t, err)
	require.Len(t, bo.mapped, device.batchBoPool.boSize)

	device.batchBoPool.Free(bo)

	again, err := device.batchBoPool.Alloc()
	require.NoError(t, err)
	require.Same(t, bo, again)
	device.batchBoPool.Free(again)

	require.Panics(t, func() {
		device.batchBoPool.Free(&BO{size: 1})
	})
}
