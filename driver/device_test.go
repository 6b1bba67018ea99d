package driver

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"go.uber.org/mock/gomock"

	"github.com/gqmelo/mesa/gem"
	"github.com/gqmelo/mesa/gem/mock_gem"
)

func newTestDevice(t *testing.T, opts DeviceOptions) (*Device, *gem.SoftDriver) {
	t.Helper()

	drv := gem.NewSoftDriver(nil)
	device, res, err := NewDevice(drv, opts)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	t.Cleanup(device.Destroy)

	return device, drv
}

func TestNewDeviceContextFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDriver := mock_gem.NewMockDriver(ctrl)

	mockDriver.EXPECT().CreateContext().Return(uint32(0), errors.New("no contexts left"))

	device, res, err := NewDevice(mockDriver, DeviceOptions{})
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorOutOfDeviceMemory, res)
	require.Nil(t, device)
}

func TestUploadKernel(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	kernelA := []byte{1, 2, 3, 4, 5}
	kernelB := []byte{6, 7, 8}

	offsetA, err := device.UploadKernel(kernelA)
	require.NoError(t, err)
	offsetB, err := device.UploadKernel(kernelB)
	require.NoError(t, err)

	require.Zero(t, offsetA%instructionKernelAlign)
	require.Zero(t, offsetB%instructionKernelAlign)
	require.NotEqual(t, offsetA, offsetB)

	require.Equal(t, kernelA, device.instructionBlock.Map(int(offsetA), len(kernelA)))
	require.Equal(t, kernelB, device.instructionBlock.Map(int(offsetB), len(kernelB)))
}

func TestGrowScratch(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	require.Zero(t, device.scratchSize())

	require.NoError(t, device.growScratch(1000))
	first := device.scratchSize()
	require.GreaterOrEqual(t, first, 1000)

	// Smaller requests never shrink the pool.
	require.NoError(t, device.growScratch(100))
	require.Equal(t, first, device.scratchSize())

	require.NoError(t, device.growScratch(first*4))
	require.GreaterOrEqual(t, device.scratchSize(), first*4)
}

func TestWaitIdle(t *testing.T) {
	device, drv := newTestDevice(t, DeviceOptions{})

	res, err := device.WaitIdle()
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	submissions := drv.Submissions()
	require.Len(t, submissions, 1)
	require.Equal(t, 8, submissions[0].BatchLen)
	require.Len(t, submissions[0].Objects, 1)
}

func TestBuildStatsString(t *testing.T) {
	device, _ := newTestDevice(t, DeviceOptions{})

	state, err := device.dynamicStatePool.Alloc(128, 64)
	require.NoError(t, err)
	device.dynamicStatePool.Free(state)

	stats, err := device.BuildStatsString()
	require.NoError(t, err)
	require.True(t, json.Valid(stats), "stats output is not valid JSON: %s", stats)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(stats, &parsed))
	require.Contains(t, parsed, "DynamicStatePool")
	require.Contains(t, parsed, "SurfaceStatePool")
}
