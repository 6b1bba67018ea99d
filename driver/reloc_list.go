package driver

import (
	"github.com/pkg/errors"

	"github.com/gqmelo/mesa/gem"
)

// RelocList records deferred address patches: "write target's final address
// plus delta at this byte offset". Entries hold the packed kernel-facing
// record; targets is the parallel slice of live BO references the kernel
// record cannot carry. The two slices are always the same length and
// index-aligned.
type RelocList struct {
	entries []gem.RelocEntry
	targets []*BO
}

func (l *RelocList) Init(capacity int) {
	l.entries = make([]gem.RelocEntry, 0, capacity)
	l.targets = make([]*BO, 0, capacity)
}

func (l *RelocList) Len() int {
	return len(l.entries)
}

// Entry returns the i'th packed relocation record for inspection or
// submission-time rewriting.
func (l *RelocList) Entry(i int) *gem.RelocEntry {
	return &l.entries[i]
}

func (l *RelocList) Target(i int) *BO {
	return l.targets[i]
}

// Add appends one relocation patching offset with target's address plus
// delta. The target's current address is recorded as the presumed value and
// returned, so the caller can write it into the batch as the optimistic
// guess the kernel checks against.
func (l *RelocList) Add(offset int, target *BO, delta uint64) uint64 {
	presumed := target.offset + delta

	l.entries = append(l.entries, gem.RelocEntry{
		Offset:         uint64(offset),
		Delta:          delta,
		TargetHandle:   uint32(target.handle),
		PresumedOffset: target.offset,
	})
	l.targets = append(l.targets, target)

	return presumed
}

// Append bulk-copies other's relocations into l, biasing every byte offset
// by offsetBias. Used when a sub-batch's bytes are spliced into a parent
// batch at offsetBias.
func (l *RelocList) Append(other *RelocList, offsetBias int) {
	base := len(l.entries)
	l.entries = append(l.entries, other.entries...)
	l.targets = append(l.targets, other.targets...)

	for i := base; i < len(l.entries); i++ {
		l.entries[i].Offset += uint64(offsetBias)
	}
}

// Clear empties the list, keeping capacity for the next recording session.
func (l *RelocList) Clear() {
	l.entries = l.entries[:0]
	l.targets = l.targets[:0]
}

// Validate checks the entries/targets alignment invariant.
func (l *RelocList) Validate() error {
	if len(l.entries) != len(l.targets) {
		return errors.Errorf("relocation list has %d entries but %d targets",
			len(l.entries), len(l.targets))
	}
	for i, target := range l.targets {
		if target == nil {
			return errors.Errorf("relocation %d has no target buffer", i)
		}
	}
	return nil
}
