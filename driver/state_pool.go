package driver

import (
	"math/bits"
	"sync"

	"github.com/gqmelo/mesa/memutils"
)

// State is one sub-allocation from a pool's backing buffer. Offset is what
// downstream code embeds into GPU-visible pointers; Map is the CPU view of
// the same bytes and is valid until the owning pool next grows, so callers
// write their payload immediately after allocating.
type State struct {
	Offset    int
	Map       []byte
	AllocSize int
}

// IsZero reports whether this is the zero State, used as the failure value
// for allocators that can run out of space.
func (s State) IsZero() bool {
	return s.Map == nil && s.AllocSize == 0
}

const statePoolClasses = 32

// StatePool carves fixed-size, power-of-two-class chunks out of a BlockPool
// with free-list reuse. It backs long-lived driver state (border colors,
// viewport and raster snapshots) that outlives any one command buffer.
type StatePool struct {
	blockPool *BlockPool

	mutex      sync.Mutex
	freeList   [statePoolClasses][]int
	allocCount int
	allocBytes int
}

func (p *StatePool) Init(blockPool *BlockPool) {
	p.blockPool = blockPool
}

// Alloc returns a chunk of at least size bytes aligned to align. Both are
// rounded up to one power-of-two size class so freed chunks can be reused by
// any request of the same class.
func (p *StatePool) Alloc(size int, align uint) (State, error) {
	class := sizeClass(size, align)
	allocSize := 1 << class

	p.mutex.Lock()
	if n := len(p.freeList[class]); n > 0 {
		offset := p.freeList[class][n-1]
		p.freeList[class] = p.freeList[class][:n-1]
		p.allocCount++
		p.allocBytes += allocSize
		p.mutex.Unlock()
		return State{
			Offset:    offset,
			Map:       p.blockPool.Map(offset, size),
			AllocSize: allocSize,
		}, nil
	}
	p.mutex.Unlock()

	offset, mapped, err := p.blockPool.Alloc(allocSize, uint(allocSize))
	if err != nil {
		return State{}, err
	}

	p.mutex.Lock()
	p.allocCount++
	p.allocBytes += allocSize
	p.mutex.Unlock()

	return State{
		Offset:    offset,
		Map:       mapped[:size],
		AllocSize: allocSize,
	}, nil
}

// Free returns a chunk to its size-class free list.
func (p *StatePool) Free(state State) {
	if state.IsZero() {
		return
	}

	memutils.DebugCheckPow2(state.AllocSize, "state AllocSize")
	class := bits.TrailingZeros(uint(state.AllocSize))

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.freeList[class] = append(p.freeList[class], state.Offset)
	p.allocCount--
	p.allocBytes -= state.AllocSize
}

// AddDetailedStatistics sums the pool's backing size and free-list occupancy
// into stats. Chunks sitting on a free list count as unused ranges.
func (p *StatePool) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats.BlockCount++
	stats.BlockBytes += p.blockPool.Size()
	stats.AllocationCount += p.allocCount
	stats.AllocationBytes += p.allocBytes
	for class, offsets := range p.freeList {
		for range offsets {
			stats.AddUnusedRange(1 << class)
		}
	}
}

func sizeClass(size int, align uint) int {
	need := size
	if int(align) > need {
		need = int(align)
	}
	rounded := memutils.NextPow2(need)
	return bits.TrailingZeros(uint(rounded))
}
