package driver

import (
	"log/slog"
	"sync"
)

// BoPool recycles uniformly sized, mapped buffer objects. Batch buffers are
// allocated and reset constantly; keeping a free list avoids a kernel
// round-trip per command buffer reset.
type BoPool struct {
	device *Device
	logger *slog.Logger
	boSize int

	mutex sync.Mutex
	free  []*BO
}

func (p *BoPool) Init(device *Device, boSize int) {
	p.device = device
	p.logger = device.logger
	p.boSize = boSize
}

// Alloc returns a mapped BO of the pool's fixed size, reusing a freed one
// when available.
func (p *BoPool) Alloc() (*BO, error) {
	p.mutex.Lock()
	if n := len(p.free); n > 0 {
		bo := p.free[n-1]
		p.free = p.free[:n-1]
		p.mutex.Unlock()
		return bo, nil
	}
	p.mutex.Unlock()

	bo := &BO{}
	if err := bo.initNew(p.device, p.boSize); err != nil {
		return nil, err
	}
	if err := bo.mmap(p.device); err != nil {
		bo.close(p.device)
		return nil, err
	}

	p.logger.Debug("BoPool::Alloc created a new batch buffer",
		slog.Int("size", p.boSize))
	return bo, nil
}

// Free returns a BO to the pool. The BO must have come from this pool.
func (p *BoPool) Free(bo *BO) {
	if bo.size != p.boSize {
		panic("freeing a buffer object into a pool of a different size")
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.free = append(p.free, bo)
}

// Finish releases every pooled BO. Outstanding allocations must have been
// returned already.
func (p *BoPool) Finish() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, bo := range p.free {
		bo.close(p.device)
	}
	p.free = nil
}
