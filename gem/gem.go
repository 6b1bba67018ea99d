// Package gem models the kernel graphics-execution interface the driver
// submits work through: buffer creation and mapping, execution contexts, and
// the execbuffer call that hands a batch plus its referenced buffer list to
// the scheduler.
package gem

import "github.com/pkg/errors"

// BufferHandle is the stable kernel identity of a buffer object. It is
// distinct from the buffer's GPU address, which the kernel may reassign on
// any submission.
type BufferHandle uint32

// RelocEntry asks the kernel to patch the 64-bit value at Offset within the
// owning buffer with the target buffer's final address plus Delta.
//
// During recording TargetHandle carries the target's BufferHandle; submission
// assembly rewrites it to the target's index within the execution object list
// (the handle-LUT convention). PresumedOffset is the target's address at
// record time and lets the kernel skip relocation processing when nothing
// moved.
type RelocEntry struct {
	Offset         uint64
	Delta          uint64
	TargetHandle   uint32
	PresumedOffset uint64
}

// ExecObject is one buffer's entry in a submission's execution object list.
type ExecObject struct {
	Handle BufferHandle
	Relocs []RelocEntry
	Offset uint64
}

// ExecFlags qualify one execbuffer request.
type ExecFlags uint32

const (
	// ExecHandleLUT indicates relocation target handles have been rewritten
	// to execution-list indices.
	ExecHandleLUT ExecFlags = 1 << iota
	// ExecNoReloc promises that no presumed offset is stale, letting the
	// kernel skip relocation processing entirely.
	ExecNoReloc
	// ExecRender routes the batch to the render engine.
	ExecRender
)

// ExecBuffer is one kernel execution request. The batch to execute is the
// final entry of Objects, starting at BatchStartOffset and spanning BatchLen
// bytes.
type ExecBuffer struct {
	Objects          []ExecObject
	BatchStartOffset int
	BatchLen         int
	Flags            ExecFlags
	ContextID        uint32
}

// Driver is the kernel-side interface the device talks to. Implementations
// are safe for concurrent use by multiple goroutines.
type Driver interface {
	// CreateBuffer allocates a buffer object of the given byte size.
	CreateBuffer(size int) (BufferHandle, error)
	// CloseBuffer releases a buffer object.
	CloseBuffer(handle BufferHandle) error
	// Mmap maps size bytes of the buffer for CPU access.
	Mmap(handle BufferHandle, size int) ([]byte, error)
	// Munmap drops the CPU mapping.
	Munmap(handle BufferHandle) error
	// CreateContext allocates an execution context.
	CreateContext() (uint32, error)
	// DestroyContext releases an execution context.
	DestroyContext(id uint32) error
	// Execbuffer submits one execution request. On success the kernel's
	// final buffer placements are written back into execbuf.Objects[].Offset.
	Execbuffer(execbuf *ExecBuffer) error
	// Wait blocks until the buffer is idle or the timeout elapses.
	// A negative timeout waits forever. Returns ErrTimeout on expiry.
	Wait(handle BufferHandle, timeoutNs int64) error
	// Close releases the driver connection.
	Close() error
}

var (
	// ErrTimeout is returned by Wait when the deadline passes first.
	ErrTimeout = errors.New("gem: wait timed out")
	// ErrBadHandle is returned for operations on unknown buffer handles.
	ErrBadHandle = errors.New("gem: unknown buffer handle")
	// ErrBadSubmission is returned when an execbuffer request fails
	// validation.
	ErrBadSubmission = errors.New("gem: malformed execbuffer request")
)
