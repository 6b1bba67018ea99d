package driver

import (
	"log/slog"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"

	"github.com/gqmelo/mesa/memutils"
)

// BlockPool owns a single growable backing buffer object that independent
// sub-allocators carve ranges out of. The pool guarantees a contiguous,
// growable address range and nothing else: it does not track individual
// allocations, which is the state pool's job.
type BlockPool struct {
	device *Device
	logger *slog.Logger

	mutex sync.Mutex
	bo    BO
	next  int
}

// Init sizes the backing buffer to initialSize rounded up to a power of two
// and maps it.
func (p *BlockPool) Init(device *Device, initialSize int) error {
	if initialSize <= 0 {
		return errors.Errorf("block pool initial size must be positive, not %d", initialSize)
	}

	p.device = device
	p.logger = device.logger
	p.next = 0

	size := memutils.NextPow2(initialSize)
	if err := p.bo.initNew(device, size); err != nil {
		return err
	}
	if err := p.bo.mmap(device); err != nil {
		p.bo.close(device)
		return err
	}
	return nil
}

// BO exposes the backing buffer object so callers can embed its address into
// base-address state or relocation targets. The pointer stays valid across
// growth; the mapping it carries does not.
func (p *BlockPool) BO() *BO {
	return &p.bo
}

func (p *BlockPool) Size() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.bo.size
}

// Alloc carves size bytes at the requested alignment from the backing
// buffer, doubling the buffer until the request fits. The returned offset is
// stable forever; the mapping slice is valid until the next growth.
func (p *BlockPool) Alloc(size int, align uint) (int, []byte, error) {
	if err := memutils.CheckPow2(align, "block pool alignment"); err != nil {
		return 0, nil, err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	offset := memutils.AlignUp(p.next, align)
	if offset+size > p.bo.size {
		if err := p.growLocked(offset + size); err != nil {
			return 0, nil, err
		}
	}
	p.next = offset + size

	return offset, p.bo.mapped[offset : offset+size], nil
}

// growLocked doubles the backing buffer until minSize fits, copying live
// bytes into the replacement. Callers hold p.mutex.
func (p *BlockPool) growLocked(minSize int) error {
	newSize := p.bo.size
	for newSize < minSize {
		newSize *= 2
	}

	var newBO BO
	if err := newBO.initNew(p.device, newSize); err != nil {
		return cerrors.Wrapf(err, "growing block pool from %d to %d bytes", p.bo.size, newSize)
	}
	if err := newBO.mmap(p.device); err != nil {
		newBO.close(p.device)
		return err
	}

	copy(newBO.mapped, p.bo.mapped[:p.next])
	p.bo.close(p.device)

	p.logger.Debug("BlockPool::grow",
		slog.Int("newSize", newSize))

	// The pool's BO keeps its identity: relocation targets hold *BO and the
	// stale presumed addresses they recorded just disable the no-reloc fast
	// path on the next submission.
	p.bo.handle = newBO.handle
	p.bo.size = newBO.size
	p.bo.mapped = newBO.mapped
	p.bo.offset = newBO.offset
	return nil
}

// Grow ensures the backing buffer covers at least minSize bytes without
// allocating anything from it.
func (p *BlockPool) Grow(minSize int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if minSize <= p.bo.size {
		return nil
	}
	return p.growLocked(minSize)
}

// Map returns the current mapping for a previously allocated range.
func (p *BlockPool) Map(offset, size int) []byte {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.bo.mapped[offset : offset+size]
}

func (p *BlockPool) Finish() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.bo.close(p.device)
}
