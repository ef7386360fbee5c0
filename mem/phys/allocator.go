package phys

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfMemory is returned when no free frame exists. There is no swap-out
// path, so the caller's operation fails; the kernel itself keeps running.
var ErrOutOfMemory = errors.New("phys: out of memory")

// Allocator hands out single page frames from the arena. A frame is either
// free or owned by exactly one mapping; ownership transfers atomically on
// Allocate and Free.
//
// The mutex only guards against the monitoring server reading counters while
// the machine runs. Within the kernel, mutation is already serialized by the
// event loop and the simulated interrupts-disabled sections.
type Allocator struct {
	mu sync.Mutex

	bitmap    []uint64
	frames    uint64
	freeCount uint64
	nextHint  uint64
}

// NewAllocator builds an allocator over the given regions. Every frame starts
// out used; only frames inside Available regions are released for allocation.
func NewAllocator(frameCount uint64, regions []Region) *Allocator {
	words := (frameCount + 63) / 64

	a := &Allocator{
		bitmap: make([]uint64, words),
		frames: frameCount,
	}

	for i := range a.bitmap {
		a.bitmap[i] = ^uint64(0)
	}

	for _, r := range regions {
		if !r.Available {
			continue
		}

		for i := uint64(0); i < r.FrameCount; i++ {
			frame := uint64(r.StartFrame) + i
			if frame >= frameCount {
				break
			}

			a.setFree(frame)
			a.freeCount++
		}
	}

	return a
}

// Allocate reserves one free frame and returns its id. It fails with
// ErrOutOfMemory when no frame is free.
func (a *Allocator) Allocate() (FrameID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.freeCount == 0 {
		return 0, ErrOutOfMemory
	}

	frame, ok := a.findFree(a.nextHint)
	if !ok {
		frame, ok = a.findFree(0)
	}

	if !ok {
		// freeCount said otherwise; the bitmap is corrupted.
		panic("phys: free count and bitmap disagree")
	}

	a.setUsed(frame)
	a.freeCount--
	a.nextHint = frame + 1

	return FrameID(frame), nil
}

// Free returns a frame to the free set. Freeing a frame that is already free
// or out of range is a fatal kernel fault: continuing would risk silent
// memory corruption.
func (a *Allocator) Free(id FrameID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame := uint64(id)
	if frame >= a.frames {
		panic(fmt.Sprintf("phys: freeing frame %d out of range", frame))
	}

	if a.isFree(frame) {
		panic(fmt.Sprintf("phys: double free of frame %d", frame))
	}

	a.setFree(frame)
	a.freeCount++

	if frame < a.nextHint {
		a.nextHint = frame
	}
}

// FreeCount reports how many frames are currently free.
func (a *Allocator) FreeCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.freeCount
}

// Reserve marks a specific frame as used, failing if it is not free. The
// boot path uses it to pin the frames holding the kernel image and heap.
func (a *Allocator) Reserve(id FrameID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame := uint64(id)
	if frame >= a.frames || !a.isFree(frame) {
		return fmt.Errorf("phys: frame %d not reservable: %w",
			frame, ErrOutOfMemory)
	}

	a.setUsed(frame)
	a.freeCount--

	return nil
}

func (a *Allocator) findFree(start uint64) (uint64, bool) {
	for frame := start; frame < a.frames; frame++ {
		if a.isFree(frame) {
			return frame, true
		}
	}

	return 0, false
}

func (a *Allocator) isFree(frame uint64) bool {
	return a.bitmap[frame/64]&(1<<(frame%64)) == 0
}

func (a *Allocator) setFree(frame uint64) {
	a.bitmap[frame/64] &^= 1 << (frame % 64)
}

func (a *Allocator) setUsed(frame uint64) {
	a.bitmap[frame/64] |= 1 << (frame % 64)
}
