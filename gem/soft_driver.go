package gem

import (
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
)

type softBuffer struct {
	handle  BufferHandle
	size    int
	backing []byte
	offset  uint64
	mapped  bool
}

// SoftDriver is an in-memory Driver used when no hardware is present and by
// the test suite. Buffers are plain byte slices, GPU addresses are fake but
// stable between submissions unless MoveOnSubmit is set, and execbuffer
// requests are validated and recorded instead of executed.
type SoftDriver struct {
	logger *slog.Logger

	mutex       sync.Mutex
	buffers     *swiss.Map[BufferHandle, *softBuffer]
	nextHandle  BufferHandle
	nextAddress uint64
	nextContext uint32

	// MoveOnSubmit reassigns every referenced buffer's address on each
	// submission, forcing full relocation processing downstream.
	MoveOnSubmit bool
	// BusyNs simulates this much pending work on every Wait call.
	BusyNs int64
	// FailNextExec makes the next Execbuffer call return this error.
	FailNextExec error

	submissions []ExecBuffer
}

// NewSoftDriver creates a software execution driver. A nil logger falls back
// to slog.Default.
func NewSoftDriver(logger *slog.Logger) *SoftDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SoftDriver{
		logger:      logger,
		buffers:     swiss.NewMap[BufferHandle, *softBuffer](64),
		nextHandle:  1,
		nextAddress: 1 << 20,
	}
}

var _ Driver = &SoftDriver{}

func (d *SoftDriver) CreateBuffer(size int) (BufferHandle, error) {
	if size <= 0 {
		return 0, errors.Errorf("gem: invalid buffer size %d", size)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	buf := &softBuffer{
		handle:  d.nextHandle,
		size:    size,
		backing: make([]byte, size),
		offset:  d.nextAddress,
	}
	d.nextHandle++
	d.nextAddress += uint64((size + 4095) &^ 4095)
	d.buffers.Put(buf.handle, buf)

	return buf.handle, nil
}

func (d *SoftDriver) CloseBuffer(handle BufferHandle) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.buffers.Get(handle); !ok {
		return ErrBadHandle
	}
	d.buffers.Delete(handle)
	return nil
}

func (d *SoftDriver) Mmap(handle BufferHandle, size int) ([]byte, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	buf, ok := d.buffers.Get(handle)
	if !ok {
		return nil, ErrBadHandle
	}
	if size > buf.size {
		return nil, errors.Errorf("gem: mmap of %d bytes exceeds buffer size %d", size, buf.size)
	}
	buf.mapped = true
	return buf.backing[:size], nil
}

func (d *SoftDriver) Munmap(handle BufferHandle) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	buf, ok := d.buffers.Get(handle)
	if !ok {
		return ErrBadHandle
	}
	buf.mapped = false
	return nil
}

func (d *SoftDriver) CreateContext() (uint32, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.nextContext++
	return d.nextContext, nil
}

func (d *SoftDriver) DestroyContext(id uint32) error {
	return nil
}

// Execbuffer validates the request, optionally moves every referenced buffer,
// applies relocation patches unless the no-reloc fast path was requested, and
// writes final placements back into the request's exec objects.
func (d *SoftDriver) Execbuffer(execbuf *ExecBuffer) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if err := d.FailNextExec; err != nil {
		d.FailNextExec = nil
		return err
	}

	if len(execbuf.Objects) == 0 {
		return errors.Wrap(ErrBadSubmission, "empty object list")
	}

	bufs := make([]*softBuffer, len(execbuf.Objects))
	for i, obj := range execbuf.Objects {
		buf, ok := d.buffers.Get(obj.Handle)
		if !ok {
			return errors.Wrapf(ErrBadHandle, "exec object %d", i)
		}
		bufs[i] = buf

		if d.MoveOnSubmit {
			buf.offset = d.nextAddress
			d.nextAddress += uint64((buf.size + 4095) &^ 4095)
		}
	}

	batch := bufs[len(bufs)-1]
	if execbuf.BatchStartOffset+execbuf.BatchLen > batch.size {
		return errors.Wrapf(ErrBadSubmission,
			"batch range [%d, %d) exceeds buffer size %d",
			execbuf.BatchStartOffset, execbuf.BatchStartOffset+execbuf.BatchLen, batch.size)
	}

	for i, obj := range execbuf.Objects {
		for _, reloc := range obj.Relocs {
			if execbuf.Flags&ExecHandleLUT == 0 {
				return errors.Wrap(ErrBadSubmission, "relocation targets must use the handle LUT")
			}
			if int(reloc.TargetHandle) >= len(execbuf.Objects) {
				return errors.Wrapf(ErrBadSubmission,
					"relocation target index %d out of range", reloc.TargetHandle)
			}
			if reloc.Offset+8 > uint64(bufs[i].size) {
				return errors.Wrapf(ErrBadSubmission,
					"relocation offset %d out of range for buffer of %d bytes",
					reloc.Offset, bufs[i].size)
			}

			if execbuf.Flags&ExecNoReloc == 0 {
				target := bufs[reloc.TargetHandle]
				binary.LittleEndian.PutUint64(
					bufs[i].backing[reloc.Offset:], target.offset+reloc.Delta)
			}
		}
	}

	for i := range execbuf.Objects {
		execbuf.Objects[i].Offset = bufs[i].offset
	}

	d.submissions = append(d.submissions, *execbuf)
	d.logger.Debug("SoftDriver::Execbuffer",
		slog.Int("objects", len(execbuf.Objects)),
		slog.Int("batchLen", execbuf.BatchLen))
	return nil
}

func (d *SoftDriver) Wait(handle BufferHandle, timeoutNs int64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.buffers.Get(handle); !ok {
		return ErrBadHandle
	}
	if timeoutNs >= 0 && d.BusyNs > timeoutNs {
		return ErrTimeout
	}
	return nil
}

func (d *SoftDriver) Close() error {
	return nil
}

// Submissions returns every execbuffer request accepted so far.
func (d *SoftDriver) Submissions() []ExecBuffer {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	out := make([]ExecBuffer, len(d.submissions))
	copy(out, d.submissions)
	return out
}

// BufferAddress reports the current fake GPU address of a buffer.
func (d *SoftDriver) BufferAddress(handle BufferHandle) (uint64, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	buf, ok := d.buffers.Get(handle)
	if !ok {
		return 0, ErrBadHandle
	}
	return buf.offset, nil
}
