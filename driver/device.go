package driver

import (
	"encoding/binary"
	"log/slog"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	"github.com/gqmelo/mesa/gem"
	"github.com/gqmelo/mesa/gfx8"
	"github.com/gqmelo/mesa/memutils"
)

const (
	defaultBatchBoSize      = 8192
	defaultDynamicStateSize = 16384
	defaultSurfaceStateSize = 4096
	defaultInstructionSize  = 8192
	borderColorCount        = 4
	instructionKernelAlign  = 64
	waitIdleBatchSize       = 32
)

// DeviceOptions tunes pool sizing. Zero values select defaults; sizes round
// up to powers of two.
type DeviceOptions struct {
	Logger *slog.Logger

	// BatchBoSize is the fixed size of recycled batch buffer objects.
	BatchBoSize int
	// DynamicStateSize is the initial size of the dynamic state block pool.
	DynamicStateSize int
	// SurfaceStateSize is the initial size of the canonical surface state
	// block pool.
	SurfaceStateSize int
	// InstructionSize is the initial size of the kernel instruction pool.
	InstructionSize int
}

// Device owns the pools every command buffer allocates from and the single
// execution context submissions run on. All pools are safe for concurrent
// use; the device mutex serializes submission assembly, which reuses the
// transient per-BO index.
type Device struct {
	driver gem.Driver
	logger *slog.Logger

	contextID uint32
	mutex     sync.Mutex

	batchBoPool BoPool

	dynamicStateBlock BlockPool
	dynamicStatePool  StatePool

	surfaceStateBlock BlockPool
	surfaceStatePool  StatePool

	instructionBlock BlockPool

	// Scratch space is created lazily: most pipelines spill nothing.
	scratchMutex sync.Mutex
	scratchBlock *BlockPool

	borderColors State

	queue Queue
}

func NewDevice(drv gem.Driver, opts DeviceOptions) (*Device, common.VkResult, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BatchBoSize == 0 {
		opts.BatchBoSize = defaultBatchBoSize
	}
	if opts.DynamicStateSize == 0 {
		opts.DynamicStateSize = defaultDynamicStateSize
	}
	if opts.SurfaceStateSize == 0 {
		opts.SurfaceStateSize = defaultSurfaceStateSize
	}
	if opts.InstructionSize == 0 {
		opts.InstructionSize = defaultInstructionSize
	}

	d := &Device{
		driver: drv,
		logger: opts.Logger,
	}

	contextID, err := drv.CreateContext()
	if err != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, cerrors.Wrap(err, "creating execution context")
	}
	d.contextID = contextID

	d.batchBoPool.Init(d, memutils.NextPow2(opts.BatchBoSize))

	if err = d.dynamicStateBlock.Init(d, opts.DynamicStateSize); err != nil {
		d.teardown()
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}
	d.dynamicStatePool.Init(&d.dynamicStateBlock)

	if err = d.surfaceStateBlock.Init(d, opts.SurfaceStateSize); err != nil {
		d.teardown()
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}
	d.surfaceStatePool.Init(&d.surfaceStateBlock)

	if err = d.instructionBlock.Init(d, opts.InstructionSize); err != nil {
		d.teardown()
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}

	// Sampler states point at border colors by dynamic-state offset, so the
	// slots exist for the device's whole lifetime even when unused.
	d.borderColors, err = d.dynamicStatePool.Alloc(
		borderColorCount*gfx8.SurfaceStateSize, gfx8.SurfaceStateSize)
	if err != nil {
		d.teardown()
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}

	d.queue.device = d

	return d, core1_0.VKSuccess, nil
}

// Queue returns the device's single submission queue.
func (d *Device) Queue() *Queue {
	return &d.queue
}

// Destroy releases every pool and the execution context. The gem driver
// itself stays open; the caller owns it.
func (d *Device) Destroy() {
	d.teardown()
}

func (d *Device) teardown() {
	d.scratchMutex.Lock()
	if d.scratchBlock != nil {
		d.scratchBlock.Finish()
		d.scratchBlock = nil
	}
	d.scratchMutex.Unlock()

	d.instructionBlock.Finish()
	d.surfaceStateBlock.Finish()
	d.dynamicStateBlock.Finish()
	d.batchBoPool.Finish()

	if d.contextID != 0 {
		if err := d.driver.DestroyContext(d.contextID); err != nil {
			d.logger.Error("Device::Destroy failed to destroy context",
				slog.Any("error", err))
		}
		d.contextID = 0
	}
}

// scratchSize reports the current scratch pool size, zero before any
// pipeline has asked for spill space.
func (d *Device) scratchSize() int {
	d.scratchMutex.Lock()
	defer d.scratchMutex.Unlock()

	if d.scratchBlock == nil {
		return 0
	}
	return d.scratchBlock.Size()
}

// growScratch ensures the scratch pool covers at least size bytes, creating
// it on first use. Scratch only ever grows; in-flight batches keep valid
// general-state addresses because the pool BO keeps its identity.
func (d *Device) growScratch(size int) error {
	d.scratchMutex.Lock()
	defer d.scratchMutex.Unlock()

	if d.scratchBlock == nil {
		pool := &BlockPool{}
		if err := pool.Init(d, size); err != nil {
			return cerrors.Wrapf(err, "creating %d-byte scratch pool", size)
		}
		d.scratchBlock = pool
		return nil
	}

	return d.scratchBlock.Grow(size)
}

// UploadKernel copies compiled shader code into the instruction pool and
// returns its offset, the value pipelines use as a kernel start pointer.
func (d *Device) UploadKernel(code []byte) (uint32, error) {
	offset, mapped, err := d.instructionBlock.Alloc(len(code), instructionKernelAlign)
	if err != nil {
		return 0, cerrors.Wrapf(err, "uploading %d-byte kernel", len(code))
	}

	copy(mapped, code)
	return uint32(offset), nil
}

// WaitIdle submits a trivial end-of-batch through the execution context and
// blocks until it drains, which by queue ordering means everything submitted
// before it has drained too.
func (d *Device) WaitIdle() (common.VkResult, error) {
	state, err := d.dynamicStatePool.Alloc(waitIdleBatchSize, 32)
	if err != nil {
		return core1_0.VKErrorOutOfDeviceMemory, err
	}
	defer d.dynamicStatePool.Free(state)

	var dwords [2]uint32
	gfx8.MIBatchBufferEnd{}.Pack(dwords[:])
	gfx8.MINoop{}.Pack(dwords[1:])
	binary.LittleEndian.PutUint32(state.Map, dwords[0])
	binary.LittleEndian.PutUint32(state.Map[4:], dwords[1])

	bo := d.dynamicStateBlock.BO()
	execbuf := gem.ExecBuffer{
		Objects: []gem.ExecObject{{
			Handle: bo.handle,
			Offset: bo.offset,
		}},
		BatchStartOffset: state.Offset,
		BatchLen:         8,
		Flags:            gem.ExecHandleLUT | gem.ExecNoReloc | gem.ExecRender,
		ContextID:        d.contextID,
	}

	if err = d.driver.Execbuffer(&execbuf); err != nil {
		return core1_0.VKErrorDeviceLost, cerrors.Wrap(err, "submitting idle batch")
	}
	bo.offset = execbuf.Objects[0].Offset

	if err = d.driver.Wait(bo.handle, -1); err != nil {
		return core1_0.VKErrorDeviceLost, cerrors.Wrap(err, "waiting for idle batch")
	}
	return core1_0.VKSuccess, nil
}

// BuildStatsString renders a JSON snapshot of every pool's usage.
func (d *Device) BuildStatsString() ([]byte, error) {
	writer := jwriter.NewWriter()

	obj := writer.Object()

	d.printPoolStats(&obj, "DynamicStatePool", &d.dynamicStatePool)
	d.printPoolStats(&obj, "SurfaceStatePool", &d.surfaceStatePool)

	obj.Name("InstructionPoolBytes").Int(d.instructionBlock.Size())
	obj.Name("ScratchPoolBytes").Int(d.scratchSize())

	obj.End()

	err := writer.Error()
	if err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}

func (d *Device) printPoolStats(obj *jwriter.ObjectState, name string, pool *StatePool) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	pool.AddDetailedStatistics(&stats)

	poolObj := obj.Name(name).Object()
	poolObj.Name("BlockBytes").Int(stats.BlockBytes)
	poolObj.Name("AllocationCount").Int(stats.AllocationCount)
	poolObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	poolObj.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)
	if stats.UnusedRangeCount > 0 {
		poolObj.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		poolObj.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
	poolObj.End()
}
