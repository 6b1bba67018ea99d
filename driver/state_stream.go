package driver

// StateStream hands out short-lived state from a block pool in strict append
// order. Streams never free individual states; the whole stream is reset at
// once when its owning command buffer resets.
type StateStream struct {
	blockPool *BlockPool

	marks []int
}

func (s *StateStream) Init(blockPool *BlockPool) {
	s.blockPool = blockPool
	s.marks = s.marks[:0]
}

// Alloc returns the next state in the stream. Unlike StatePool allocations,
// stream states cannot be freed individually.
func (s *StateStream) Alloc(size int, align uint) (State, error) {
	offset, mapped, err := s.blockPool.Alloc(size, align)
	if err != nil {
		return State{}, err
	}

	s.marks = append(s.marks, offset)
	return State{
		Offset:    offset,
		Map:       mapped,
		AllocSize: size,
	}, nil
}

// Reset invalidates every state allocated from this stream. The backing
// block pool only grows, so the bytes simply stop being ours; nothing is
// returned to the pool.
func (s *StateStream) Reset() {
	s.marks = s.marks[:0]
}

// Count reports how many states the stream has handed out since its last
// reset.
func (s *StateStream) Count() int {
	return len(s.marks)
}
