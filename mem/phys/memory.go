// Package phys models the machine's physical memory: a flat arena of 4 KiB
// frames plus the bitmap allocator that tracks which frames are free.
package phys

import "fmt"

// FrameSize is the size of one physical frame in bytes.
const FrameSize = 4096

// FrameID indexes a frame in the physical memory arena.
type FrameID uint64

// A Region describes one range of physical memory reported by the boot
// collaborator. Only Available regions back allocatable frames.
type Region struct {
	StartFrame FrameID
	FrameCount uint64
	Available  bool
}

// Memory is the physical memory arena. Frame id doubles as the arena index,
// so there is no raw address arithmetic outside the translation routine.
type Memory struct {
	data       []byte
	frameCount uint64
}

// NewMemory creates an arena of frameCount frames, all zeroed.
func NewMemory(frameCount uint64) *Memory {
	return &Memory{
		data:       make([]byte, frameCount*FrameSize),
		frameCount: frameCount,
	}
}

// FrameCount returns the number of frames in the arena.
func (m *Memory) FrameCount() uint64 {
	return m.frameCount
}

// Frame returns the backing bytes of one frame.
func (m *Memory) Frame(id FrameID) []byte {
	m.mustContain(id)
	start := uint64(id) * FrameSize

	return m.data[start : start+FrameSize]
}

// ReadAt copies len(buf) bytes starting at the physical address.
func (m *Memory) ReadAt(paddr uint64, buf []byte) {
	end := paddr + uint64(len(buf))
	if end > uint64(len(m.data)) {
		panic(fmt.Sprintf("phys: read beyond physical memory at %#x", paddr))
	}

	copy(buf, m.data[paddr:end])
}

// WriteAt copies buf into physical memory starting at the physical address.
func (m *Memory) WriteAt(paddr uint64, buf []byte) {
	end := paddr + uint64(len(buf))
	if end > uint64(len(m.data)) {
		panic(fmt.Sprintf("phys: write beyond physical memory at %#x", paddr))
	}

	copy(m.data[paddr:end], buf)
}

func (m *Memory) mustContain(id FrameID) {
	if uint64(id) >= m.frameCount {
		panic(fmt.Sprintf("phys: frame %d out of range (%d frames)",
			id, m.frameCount))
	}
}
