package transform

import (
	"fmt"
	"math"

	"github.com/gogpu/meshc/ir"
)

// layout assigns block-local storage offsets within one task. The cursor
// only grows.
type layout struct {
	cursor uint32
}

// newLayout resumes after the slots already recorded on t.
func newLayout(t *ir.Task) *layout {
	l := &layout{}
	for _, slot := range t.BLSSlots {
		l.cursor = max(l.cursor, slot.End())
	}
	return l
}

// alignUp returns cursor rounded up to a multiple of size.
func alignUp(cursor, size uint32) uint32 {
	return cursor + (size-cursor%size)%size
}

// allocate reserves room for capacity elements of elemSize bytes,
// starting at the next elemSize-aligned offset.
func (l *layout) allocate(m Mapping, elemSize, capacity uint32) (ir.BLSSlot, error) {
	if elemSize == 0 {
		return ir.BLSSlot{}, fmt.Errorf("%s: zero element size", m)
	}
	offset := alignUp(l.cursor, elemSize)
	size := uint64(elemSize) * uint64(capacity)
	// Byte offsets are materialized as i32 constants.
	if uint64(offset)+size > math.MaxInt32 {
		return ir.BLSSlot{}, fmt.Errorf("%s: %d elements of %d bytes at offset %d overflow block-local storage",
			m, capacity, elemSize, offset)
	}
	l.cursor = offset + uint32(size)
	return ir.BLSSlot{
		Element: m.Element,
		Conv:    m.Conv,
		Offset:  offset,
		Size:    uint32(size),
	}, nil
}

// size returns the block-local storage requirement. Some code paths need
// a non-empty declaration, so it is at least one byte.
func (l *layout) size() uint32 {
	return max(1, l.cursor)
}
