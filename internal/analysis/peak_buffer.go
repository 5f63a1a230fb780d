// internal/analysis/peak_buffer.go
package analysis

// PeakBufferSize is the number of inter-edge intervals averaged per rate update
const PeakBufferSize = 8

// PeakBuffer is a fixed-capacity store of inter-edge sample counts. Reset only
// rewinds the write index; old values stay until overwritten.
type PeakBuffer struct {
	slots [PeakBufferSize]int32
	index int
}

// Push stores v at the write index. It reports false when the buffer is full.
func (b *PeakBuffer) Push(v int32) bool {
	if b.index >= PeakBufferSize {
		return false
	}
	b.slots[b.index] = v
	b.index++
	return true
}

// Len returns the write index, i.e. how many slots were written since the last reset
func (b *PeakBuffer) Len() int {
	return b.index
}

// Full reports whether every slot has been written since the last reset
func (b *PeakBuffer) Full() bool {
	return b.index == PeakBufferSize
}

// Sum adds up all slots
func (b *PeakBuffer) Sum() int32 {
	var sum int32
	for _, v := range b.slots {
		sum += v
	}
	return sum
}

// Reset rewinds the write index
func (b *PeakBuffer) Reset() {
	b.index = 0
}
